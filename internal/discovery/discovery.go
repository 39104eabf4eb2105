// Package discovery advertises a relay on the local network over mDNS and
// lets clients browse for running instances, sparing users from typing
// relay URLs by hand. Purely optional convenience; nothing else depends on it.
package discovery

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	serviceType   = "_modcollab._tcp"
	serviceDomain = "local."
)

// Advertiser keeps one mDNS registration alive until closed.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers this relay instance on the LAN.
func Advertise(instanceName string, port int) (*Advertiser, error) {
	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		fmt.Sprintf("%s-%s", instanceName, host),
		serviceType,
		serviceDomain,
		port,
		[]string{"proto=1"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}
	log.Printf("discovery: advertising %s on port %d", instanceName, port)
	return &Advertiser{server: server}, nil
}

// Close withdraws the registration.
func (a *Advertiser) Close() {
	a.server.Shutdown()
}

// Instance is one relay found on the LAN.
type Instance struct {
	Name string
	Host string
	Port int
}

// URL returns the WebSocket endpoint for the instance.
func (i Instance) URL() string {
	return fmt.Sprintf("ws://%s:%d/ws", i.Host, i.Port)
}

// Browse looks for relays on the LAN for the given duration.
func Browse(ctx context.Context, timeout time.Duration) ([]Instance, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("create mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := resolver.Browse(browseCtx, serviceType, serviceDomain, entries); err != nil {
		return nil, fmt.Errorf("browse mdns: %w", err)
	}

	var found []Instance
	for entry := range entries {
		inst := Instance{Name: entry.Instance, Port: entry.Port}
		if len(entry.AddrIPv4) > 0 {
			inst.Host = entry.AddrIPv4[0].String()
		} else if entry.HostName != "" {
			inst.Host = entry.HostName
		}
		if inst.Host != "" {
			found = append(found, inst)
		}
	}
	return found, nil
}
