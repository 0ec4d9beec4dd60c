package fleethub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/geometry"
	"github.com/autopeer-io/fleethub/internal/fleethub/ingest"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
	"github.com/autopeer-io/fleethub/internal/fleethub/storage"
	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/mqtt"
	"github.com/autopeer-io/fleethub/pkg/options"
)

// fetchTimeout bounds each startup document download.
const fetchTimeout = 30 * time.Second

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("fleet-hub-%s", hostname)
	}

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}

// LoadGeometry fetches and parses the zone and border documents. With
// AllowEmpty a missing or broken document degrades to an empty store.
func LoadGeometry(ctx context.Context, r *storage.Resolver, opts *options.GeofenceOptions) (*geometry.Store, error) {
	store, err := loadGeometry(ctx, r, opts)
	if err == nil {
		log.Info("Geometry loaded", "zones", len(store.Zones()), "borders", len(store.Borders()))
		return store, nil
	}
	if !opts.AllowEmpty {
		return nil, err
	}
	log.Warn("Running without restricted zones", "err", err.Error())
	return geometry.New(nil, nil), nil
}

func loadGeometry(ctx context.Context, r *storage.Resolver, opts *options.GeofenceOptions) (*geometry.Store, error) {
	if opts.ZonesURI == "" || opts.BordersURI == "" {
		return nil, fmt.Errorf("%w: geometry locations not configured", geometry.ErrGeometryLoad)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	zones, err := r.Fetch(ctx, opts.ZonesURI)
	if err != nil {
		return nil, fmt.Errorf("%w: zones: %v", geometry.ErrGeometryLoad, err)
	}
	borders, err := r.Fetch(ctx, opts.BordersURI)
	if err != nil {
		return nil, fmt.Errorf("%w: borders: %v", geometry.ErrGeometryLoad, err)
	}
	return geometry.Load(zones, borders)
}

// LoadSnapshot seeds reg from the optional fleet snapshot and returns the
// number of vehicles applied.
func LoadSnapshot(ctx context.Context, r *storage.Resolver, uri string, reg *registry.Registry) (int, error) {
	if uri == "" {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	doc, err := r.Fetch(ctx, uri)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("Fleet snapshot not found, starting empty", "location", uri)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch fleet snapshot: %w", err)
	}

	states, err := ingest.DecodeSnapshot(doc, time.Now())
	if err != nil {
		return 0, err
	}
	n := reg.Load(states)
	log.Info("Fleet snapshot loaded", "location", uri, "records", len(states), "applied", n)
	return n, nil
}
