package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.HTTP.Port != 8090 {
		t.Errorf("default port = %d", cfg.HTTP.Port)
	}
	if cfg.History.Enabled || cfg.Discovery.Enabled {
		t.Error("history and discovery must be off by default")
	}
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != DefaultConfig().HTTP.Port {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9100
  read_timeout: 10s
history:
  enabled: true
  path: /tmp/transcript.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v", cfg.HTTP.ReadTimeout)
	}
	if !cfg.History.Enabled || cfg.History.Path != "/tmp/transcript.db" {
		t.Errorf("history = %+v", cfg.History)
	}
	// Untouched fields keep their defaults.
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.HTTP.Host)
	}
	if cfg.WebSocket.SendBuffer != 256 {
		t.Errorf("send buffer = %d", cfg.WebSocket.SendBuffer)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file must error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml must error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
		{"zero write timeout", func(c *Config) { c.HTTP.WriteTimeout = 0 }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }},
		{"discovery without name", func(c *Config) { c.Discovery.Enabled = true; c.Discovery.InstanceName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
