package containment

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

func pt(lat, lon float64) model.Point { return model.Point{Latitude: lat, Longitude: lon} }

func square(id string, minLat, minLon, maxLat, maxLon float64) model.RestrictionZone {
	return model.RestrictionZone{ID: id, Ring: []model.Point{
		pt(minLat, minLon), pt(minLat, maxLon), pt(maxLat, maxLon), pt(maxLat, minLon),
	}}
}

func TestContainsUnitSquare(t *testing.T) {
	zone := model.RestrictionZone{ID: "unit", Ring: []model.Point{pt(0, 0), pt(0, 1), pt(1, 1), pt(1, 0)}}

	assert.True(t, Contains(pt(0.5, 0.5), zone))
	assert.False(t, Contains(pt(2, 2), zone))
	assert.False(t, Contains(pt(-0.5, 0.5), zone))
}

func TestContainsEdgeConvention(t *testing.T) {
	zone := square("unit", 0, 0, 1, 1)

	// West and south edges are inside, east and north edges outside.
	assert.True(t, Contains(pt(0.5, 0), zone))
	assert.True(t, Contains(pt(0, 0.5), zone))
	assert.False(t, Contains(pt(0.5, 1), zone))
	assert.False(t, Contains(pt(1, 0.5), zone))

	// Repeated evaluation is deterministic.
	for range 100 {
		assert.True(t, Contains(pt(0.5, 0), zone))
	}
}

func TestContainsConcave(t *testing.T) {
	// U shape opening north.
	zone := model.RestrictionZone{ID: "u", Ring: []model.Point{
		pt(0, 0), pt(0, 3), pt(3, 3), pt(3, 2), pt(1, 2), pt(1, 1), pt(3, 1), pt(3, 0),
	}}

	assert.True(t, Contains(pt(0.5, 1.5), zone))
	assert.False(t, Contains(pt(2, 1.5), zone))
	assert.True(t, Contains(pt(2, 0.5), zone))
	assert.True(t, Contains(pt(2, 2.5), zone))
}

func TestContainsRealCoordinates(t *testing.T) {
	zone := square("oval", 35.20, -97.45, 35.21, -97.44)
	assert.True(t, Contains(pt(35.205, -97.445), zone))
	assert.False(t, Contains(pt(35.2310, -97.4775), zone))
}

func TestCheckDegenerate(t *testing.T) {
	_, err := Check(pt(0, 0), model.RestrictionZone{ID: "line", Ring: []model.Point{pt(0, 0), pt(1, 1)}})
	assert.ErrorIs(t, err, ErrDegenerateZone)

	_, err = Check(pt(0, 0), model.RestrictionZone{ID: "nan", Ring: []model.Point{pt(0, 0), pt(math.NaN(), 1), pt(1, 1)}})
	assert.ErrorIs(t, err, ErrDegenerateZone)

	assert.False(t, Contains(pt(0, 0), model.RestrictionZone{}))
}

func TestNearestZoneFirstMatch(t *testing.T) {
	a := square("A", 0, 0, 2, 2)
	b := square("B", 1, 1, 3, 3)

	z, ok := NearestZone(pt(1.5, 1.5), []model.RestrictionZone{a, b})
	require.True(t, ok)
	assert.Equal(t, "A", z.ID)

	z, ok = NearestZone(pt(1.5, 1.5), []model.RestrictionZone{b, a})
	require.True(t, ok)
	assert.Equal(t, "B", z.ID)

	_, ok = NearestZone(pt(50, 50), []model.RestrictionZone{a, b})
	assert.False(t, ok)

	_, ok = NearestZone(pt(0.5, 0.5), nil)
	assert.False(t, ok)
}

func TestLocateSkipsDegenerate(t *testing.T) {
	bad := model.RestrictionZone{ID: "bad", Ring: []model.Point{pt(0, 0)}}
	good := square("good", 0, 0, 1, 1)

	var skipped []string
	z, ok := Locate(pt(0.5, 0.5), []model.RestrictionZone{bad, good}, func(zone model.RestrictionZone, err error) {
		assert.ErrorIs(t, err, ErrDegenerateZone)
		skipped = append(skipped, zone.ID)
	})
	require.True(t, ok)
	assert.Equal(t, "good", z.ID)
	assert.Equal(t, []string{"bad"}, skipped)
}

func TestConcurrentUse(t *testing.T) {
	zones := []model.RestrictionZone{square("A", 0, 0, 1, 1)}
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := NearestZone(pt(0.5, float64(i%2)*5+0.5), zones)
			assert.Equal(t, i%2 == 0, ok)
		}()
	}
	wg.Wait()
}
