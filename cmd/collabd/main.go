// Command collabd runs the collaboration relay: the WebSocket endpoint that
// editing clients connect to, plus a small inspection API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"modcollab/internal/app"
	"modcollab/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		port       = flag.Int("port", 0, "override HTTP/WebSocket port")
		historyDB  = flag.String("history", "", "enable session transcripts at this sqlite path")
		discover   = flag.Bool("discover", false, "advertise this relay on the LAN via mDNS")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("collabd: %v", err)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *historyDB != "" {
		cfg.History.Enabled = true
		cfg.History.Path = *historyDB
	}
	if *discover {
		cfg.Discovery.Enabled = true
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		log.Fatalf("collabd: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("collabd: received %v, shutting down", sig)
		cancel()
		if err := application.Shutdown(context.Background()); err != nil {
			log.Printf("collabd: shutdown error: %v", err)
		}
	}()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("collabd: %v", err)
	}
}
