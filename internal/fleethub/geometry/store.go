// Package geometry loads the static restriction zones and boundary lines.
//
// Documents are GeoJSON (FeatureCollection, Feature or a bare geometry) with
// [longitude, latitude] positions. Polygons and multi-polygons become zones,
// using outer rings only; line strings become advisory boundary lines. A Store
// is immutable once loaded and safe for concurrent readers.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// ErrGeometryLoad is wrapped by every load failure.
var ErrGeometryLoad = errors.New("geometry load failed")

// Store holds the parsed zones and borders.
type Store struct {
	zones   []model.RestrictionZone
	borders []model.BoundaryLine
}

// Load parses both documents. Either may be empty only through the
// dedicated LoadZones/LoadBorders calls; here both are required.
func Load(zoneDoc, borderDoc []byte) (*Store, error) {
	zones, err := LoadZones(zoneDoc)
	if err != nil {
		return nil, err
	}
	borders, err := LoadBorders(borderDoc)
	if err != nil {
		return nil, err
	}
	return New(zones, borders), nil
}

// New builds a Store from already-parsed geometry. The slices are copied.
func New(zones []model.RestrictionZone, borders []model.BoundaryLine) *Store {
	return &Store{
		zones:   append([]model.RestrictionZone(nil), zones...),
		borders: append([]model.BoundaryLine(nil), borders...),
	}
}

// Zones returns the zones in document order. Callers must not modify the result.
func (s *Store) Zones() []model.RestrictionZone {
	if s == nil {
		return nil
	}
	return s.zones
}

// Borders returns the boundary lines in document order. Callers must not modify the result.
func (s *Store) Borders() []model.BoundaryLine {
	if s == nil {
		return nil
	}
	return s.borders
}

// Zone looks a zone up by ID.
func (s *Store) Zone(id string) (model.RestrictionZone, bool) {
	for _, z := range s.Zones() {
		if z.ID == id {
			return z, true
		}
	}
	return model.RestrictionZone{}, false
}

// LoadZones parses a zone polygon document.
func LoadZones(doc []byte) ([]model.RestrictionZone, error) {
	features, err := decode(doc)
	if err != nil {
		return nil, err
	}

	var zones []model.RestrictionZone
	for i, f := range features {
		var polys []orb.Polygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = []orb.Polygon{g}
		case orb.MultiPolygon:
			polys = g
		default:
			continue
		}

		id, name := featureIdentity(f, "zone", i)
		for j, poly := range polys {
			if len(poly) == 0 {
				return nil, fmt.Errorf("%w: zone %s has no rings", ErrGeometryLoad, id)
			}
			ring, err := toRing(poly[0])
			if err != nil {
				return nil, fmt.Errorf("%w: zone %s: %v", ErrGeometryLoad, id, err)
			}
			zid := id
			if len(polys) > 1 {
				zid = fmt.Sprintf("%s#%d", id, j)
			}
			zones = append(zones, model.RestrictionZone{ID: zid, Name: name, Ring: ring})
		}
	}
	return zones, nil
}

// LoadBorders parses a boundary polyline document.
func LoadBorders(doc []byte) ([]model.BoundaryLine, error) {
	features, err := decode(doc)
	if err != nil {
		return nil, err
	}

	var borders []model.BoundaryLine
	for i, f := range features {
		var lines []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			lines = []orb.LineString{g}
		case orb.MultiLineString:
			lines = g
		default:
			continue
		}

		id, name := featureIdentity(f, "border", i)
		for j, ls := range lines {
			pts, err := toPoints(ls)
			if err != nil {
				return nil, fmt.Errorf("%w: border %s: %v", ErrGeometryLoad, id, err)
			}
			if len(pts) < 2 {
				return nil, fmt.Errorf("%w: border %s has fewer than 2 points", ErrGeometryLoad, id)
			}
			bid := id
			if len(lines) > 1 {
				bid = fmt.Sprintf("%s#%d", id, j)
			}
			borders = append(borders, model.BoundaryLine{ID: bid, Name: name, Points: pts})
		}
	}
	return borders, nil
}

func decode(doc []byte) ([]*geojson.Feature, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrGeometryLoad)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometryLoad, err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometryLoad, err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometryLoad, err)
		}
		return []*geojson.Feature{f}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type member", ErrGeometryLoad)
	default:
		g, err := geojson.UnmarshalGeometry(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometryLoad, err)
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
}

func featureIdentity(f *geojson.Feature, prefix string, index int) (id, name string) {
	name = f.Properties.MustString("name", "")
	switch v := f.ID.(type) {
	case string:
		id = v
	case float64:
		id = fmt.Sprintf("%s-%d", prefix, int64(v))
	}
	if id == "" {
		id = name
	}
	if id == "" {
		id = fmt.Sprintf("%s-%d", prefix, index)
	}
	return id, name
}

// toRing converts an orb ring, dropping the closing vertex and requiring at
// least three distinct vertices.
func toRing(r orb.Ring) ([]model.Point, error) {
	pts, err := toPoints(orb.LineString(r))
	if err != nil {
		return nil, err
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	distinct := make(map[model.Point]struct{}, len(pts))
	for _, p := range pts {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("ring has %d distinct vertices, need at least 3", len(distinct))
	}
	return pts, nil
}

func toPoints(ls orb.LineString) ([]model.Point, error) {
	pts := make([]model.Point, 0, len(ls))
	for _, c := range ls {
		lon, lat := c[0], c[1]
		if !finite(lon) || !finite(lat) {
			return nil, errors.New("non-finite coordinate")
		}
		pts = append(pts, model.Point{Latitude: lat, Longitude: lon})
	}
	return pts, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
