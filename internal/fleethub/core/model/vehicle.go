package model

import (
	"math"
	"time"
)

// UnknownName is shown for a vehicle whose status never carried a display name.
const UnknownName = "Unknown"

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are finite and within range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// VehicleStatus is the authoritative status a unit reports about itself.
type VehicleStatus struct {
	Position  Point
	Battery   int
	Available bool

	// Name is optional; nil means the unit did not report one.
	Name *string
}

// VehicleState is the registry's view of a single rental unit.
// Values are immutable once published by the registry; mutate a copy.
type VehicleState struct {
	ID        string    `json:"id"`
	Position  Point     `json:"position"`
	Battery   int       `json:"batteryLevel"`
	Available bool      `json:"isAvailable"`
	Timestamp time.Time `json:"timestamp"`
	Name      *string   `json:"name,omitempty"`

	// Optimistic marks a local availability change that no status message has confirmed yet.
	Optimistic bool `json:"optimistic,omitempty"`

	// Version increments on every accepted write for this ID.
	Version uint64 `json:"version"`
}

// DisplayName returns the reported name or UnknownName.
func (v VehicleState) DisplayName() string {
	if v.Name == nil || *v.Name == "" {
		return UnknownName
	}
	return *v.Name
}

// ClampBattery bounds a reported charge level to [0,100].
func ClampBattery(level int) int {
	switch {
	case level < 0:
		return 0
	case level > 100:
		return 100
	default:
		return level
	}
}
