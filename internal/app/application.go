// Package app wires the relay daemon's components together in dependency
// order: history, hub, WebSocket handler, API, HTTP server, discovery.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"modcollab/internal/api"
	"modcollab/internal/config"
	"modcollab/internal/discovery"
	"modcollab/internal/history"
	"modcollab/internal/relay"
)

type Application struct {
	config     *config.Config
	recorder   *history.Recorder
	hub        *relay.Hub
	apiServer  *api.Server
	httpServer *http.Server
	advertiser *discovery.Advertiser
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &Application{config: cfg}

	if cfg.History.Enabled {
		recorder, err := history.NewRecorder(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("initialize history recorder: %w", err)
		}
		a.recorder = recorder
	}

	if a.recorder != nil {
		a.hub = relay.NewHub(a.recorder)
	} else {
		a.hub = relay.NewHub(nil)
	}

	a.apiServer = api.NewServer(a.hub)
	a.apiServer.Router().Handle("/ws", relay.NewHandler(a.hub))

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      a.apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return a, nil
}

// Start brings the daemon up. Blocks until the HTTP server exits.
func (a *Application) Start(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	if a.config.Discovery.Enabled {
		adv, err := discovery.Advertise(a.config.Discovery.InstanceName, a.config.HTTP.Port)
		if err != nil {
			// Discovery failing should not keep the relay down.
			log.Printf("app: discovery unavailable: %v", err)
		} else {
			a.advertiser = adv
		}
	}

	log.Printf("app: relay listening on %s", a.httpServer.Addr)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops components in reverse order of startup.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if a.advertiser != nil {
		a.advertiser.Close()
	}
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("app: http shutdown: %v", err)
	}
	a.hub.Stop()
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			log.Printf("app: history close: %v", err)
		}
	}
	log.Println("app: shutdown complete")
	return nil
}
