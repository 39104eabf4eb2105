// Package api exposes the relay's read-only inspection endpoints: health
// and the live room registry. No business logic, only HTTP handling and
// JSON serialization.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"modcollab/internal/relay"
)

type Server struct {
	hub    *relay.Hub
	router *mux.Router
}

func NewServer(hub *relay.Hub) *Server {
	s := &Server{hub: hub, router: mux.NewRouter()}
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions", s.listSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/{id}", s.getSession).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying mux so the daemon can mount the WebSocket
// endpoint alongside the API.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC(),
		"rooms":  len(s.hub.Rooms()),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	rooms := s.hub.Rooms()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(rooms),
		"sessions": rooms,
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, ok := s.hub.Room(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "session not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response failed: %v", err)
	}
}
