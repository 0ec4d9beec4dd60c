// Package containment answers point-in-zone queries.
//
// Coordinates are treated as planar (x = longitude, y = latitude) and tested
// with even-odd ray casting. There is no antimeridian handling: a zone that
// crosses ±180° longitude is evaluated as the polygon its raw coordinates
// describe.
//
// Edge convention: a crossing is counted when (yi > y) != (yj > y) and the
// point lies strictly west of the edge. For an axis-aligned zone this makes the
// west and south edges inside and the east and north edges outside. Every
// function here is pure and safe for concurrent use.
package containment

import (
	"errors"
	"fmt"
	"math"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// ErrDegenerateZone is returned for a zone that cannot bound an area.
var ErrDegenerateZone = errors.New("degenerate zone")

// Contains reports whether p lies inside zone. Degenerate zones contain nothing.
func Contains(p model.Point, zone model.RestrictionZone) bool {
	ok, err := Check(p, zone)
	return err == nil && ok
}

// Check is Contains with degenerate zones reported instead of swallowed.
func Check(p model.Point, zone model.RestrictionZone) (bool, error) {
	ring := zone.Ring
	if len(ring) < 3 {
		return false, fmt.Errorf("%w: zone %q has %d vertices", ErrDegenerateZone, zone.ID, len(ring))
	}

	x, y := p.Longitude, p.Latitude
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Longitude, ring[i].Latitude
		xj, yj := ring[j].Longitude, ring[j].Latitude
		if !finite(xi) || !finite(yi) {
			return false, fmt.Errorf("%w: zone %q has a non-finite vertex at %d", ErrDegenerateZone, zone.ID, i)
		}
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside, nil
}

// NearestZone returns the first zone, in input order, that contains p.
// The name is historical: overlapping zones resolve by order, not by distance.
func NearestZone(p model.Point, zones []model.RestrictionZone) (model.RestrictionZone, bool) {
	return Locate(p, zones, nil)
}

// Locate is NearestZone that reports every degenerate zone it skipped to onErr.
func Locate(p model.Point, zones []model.RestrictionZone, onErr func(zone model.RestrictionZone, err error)) (model.RestrictionZone, bool) {
	for _, z := range zones {
		ok, err := Check(p, z)
		if err != nil {
			if onErr != nil {
				onErr(z, err)
			}
			continue
		}
		if ok {
			return z, true
		}
	}
	return model.RestrictionZone{}, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
