package app

import (
	"path/filepath"
	"testing"

	"modcollab/internal/config"
)

func TestNewApplicationDefaults(t *testing.T) {
	a, err := NewApplication(nil)
	if err != nil {
		t.Fatalf("NewApplication(nil): %v", err)
	}
	if a.httpServer.Addr != "0.0.0.0:8090" {
		t.Errorf("addr = %q", a.httpServer.Addr)
	}
	if a.recorder != nil {
		t.Error("recorder must be off by default")
	}
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = 0
	if _, err := NewApplication(cfg); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestNewApplicationWithHistory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "transcript.db")

	a, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if a.recorder == nil {
		t.Fatal("recorder not created")
	}
	if err := a.recorder.Close(); err != nil {
		t.Errorf("recorder close: %v", err)
	}
}
