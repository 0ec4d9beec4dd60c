package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

const zonesDoc = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "campus-oval",
      "properties": {"name": "South Oval"},
      "geometry": {"type": "Polygon", "coordinates": [[[-97.45,35.20],[-97.44,35.20],[-97.44,35.21],[-97.45,35.21],[-97.45,35.20]]]}
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[0,0],[1,0],[1,1],[0,1]]],
        [[[5,5],[6,5],[6,6]]]
      ]}
    },
    {
      "type": "Feature",
      "properties": {"name": "marker"},
      "geometry": {"type": "Point", "coordinates": [1,2]}
    }
  ]
}`

const bordersDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "north-edge"},
     "geometry": {"type": "LineString", "coordinates": [[-97.46,35.22],[-97.43,35.22]]}}
  ]
}`

func TestLoad(t *testing.T) {
	s, err := Load([]byte(zonesDoc), []byte(bordersDoc))
	require.NoError(t, err)

	zones := s.Zones()
	require.Len(t, zones, 3)

	assert.Equal(t, "campus-oval", zones[0].ID)
	assert.Equal(t, "South Oval", zones[0].Name)
	// The closing vertex is dropped and coordinates are swapped to lat/lon.
	require.Len(t, zones[0].Ring, 4)
	assert.Equal(t, model.Point{Latitude: 35.20, Longitude: -97.45}, zones[0].Ring[0])

	assert.Equal(t, "zone-1#0", zones[1].ID)
	assert.Equal(t, "zone-1#1", zones[2].ID)
	assert.Len(t, zones[2].Ring, 3)

	borders := s.Borders()
	require.Len(t, borders, 1)
	assert.Equal(t, "north-edge", borders[0].ID)
	assert.Len(t, borders[0].Points, 2)

	z, ok := s.Zone("campus-oval")
	assert.True(t, ok)
	assert.Equal(t, "South Oval", z.Name)
}

func TestLoadBareGeometry(t *testing.T) {
	zones, err := LoadZones([]byte(`{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0]]]}`))
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "zone-0", zones[0].ID)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"absent", ""},
		{"malformed", `{"type":`},
		{"no type", `{"features":[]}`},
		{"two distinct vertices", `{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,0],[1,1]]]}`},
		{"empty polygon", `{"type":"Polygon","coordinates":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadZones([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrGeometryLoad)
		})
	}

	_, err := Load([]byte(zonesDoc), nil)
	assert.ErrorIs(t, err, ErrGeometryLoad)
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.Empty(t, s.Zones())
	assert.Empty(t, s.Borders())
}
