package options

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GeofenceOptions)(nil)

// GeofenceOptions locates the static geometry and the initial fleet snapshot.
// Locations are local paths, file:// or s3://bucket/key URIs.
type GeofenceOptions struct {
	ZonesURI   string `json:"zones" mapstructure:"zones"`
	BordersURI string `json:"borders" mapstructure:"borders"`

	// AllowEmpty starts the hub with no zones when geometry cannot be loaded,
	// instead of refusing to start.
	AllowEmpty bool `json:"allow-empty" mapstructure:"allow-empty"`

	// EmitExit controls whether leaving a zone produces an exited event.
	EmitExit bool `json:"emit-exit" mapstructure:"emit-exit"`

	// SnapshotURI is an optional JSON array of vehicle records loaded at startup.
	SnapshotURI string `json:"snapshot" mapstructure:"snapshot"`

	// OutboundQueue is the number of notifications buffered for the outbound
	// channels (log, MQTT republish, redis) before new ones are dropped.
	OutboundQueue int `json:"outbound-queue" mapstructure:"outbound-queue"`
}

func NewGeofenceOptions() *GeofenceOptions {
	return &GeofenceOptions{
		EmitExit:      true,
		OutboundQueue: 1024,
	}
}

func (o *GeofenceOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if !o.AllowEmpty && (o.ZonesURI == "" || o.BordersURI == "") {
		errs = append(errs, errors.New("geofence.zones and geofence.borders are required unless geofence.allow-empty is set"))
	}
	if o.OutboundQueue < 1 {
		errs = append(errs, fmt.Errorf("geofence.outbound-queue must be at least 1, got %d", o.OutboundQueue))
	}
	return errs
}

func (o *GeofenceOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ZonesURI, "geofence.zones", o.ZonesURI, "Location of the restriction zone GeoJSON document (path, file:// or s3://).")
	fs.StringVar(&o.BordersURI, "geofence.borders", o.BordersURI, "Location of the boundary line GeoJSON document (path, file:// or s3://).")
	fs.BoolVar(&o.AllowEmpty, "geofence.allow-empty", o.AllowEmpty, "Run with zero zones when the geometry cannot be loaded instead of exiting.")
	fs.BoolVar(&o.EmitExit, "geofence.emit-exit", o.EmitExit, "Emit an exited event when a subject leaves a restricted zone.")
	fs.StringVar(&o.SnapshotURI, "geofence.snapshot", o.SnapshotURI, "Optional initial fleet snapshot (JSON array of vehicle records).")
	fs.IntVar(&o.OutboundQueue, "geofence.outbound-queue", o.OutboundQueue, "Outbound notifications buffered before new ones are dropped.")
}
