package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"modcollab/internal/relay"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := relay.NewHub(nil)
	srv := httptest.NewServer(NewServer(hub))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	body := getJSON(t, srv.URL+"/health", http.StatusOK)
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["rooms"] != float64(0) {
		t.Errorf("rooms = %v", body["rooms"])
	}
}

func TestListSessionsEmpty(t *testing.T) {
	srv := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/sessions", http.StatusOK)
	if body["count"] != float64(0) {
		t.Errorf("count = %v", body["count"])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/sessions/absent", http.StatusNotFound)
	if body["error"] != "session not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d", resp.StatusCode)
	}
}
