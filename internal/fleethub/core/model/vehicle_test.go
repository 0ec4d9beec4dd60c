package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, UnknownName, VehicleState{}.DisplayName())

	empty := ""
	assert.Equal(t, UnknownName, VehicleState{Name: &empty}.DisplayName())

	name := "Test Scooter1"
	assert.Equal(t, name, VehicleState{Name: &name}.DisplayName())
}

func TestClampBattery(t *testing.T) {
	assert.Equal(t, 0, ClampBattery(-4))
	assert.Equal(t, 87, ClampBattery(87))
	assert.Equal(t, 100, ClampBattery(180))
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Latitude: 35.231, Longitude: -97.4775}.Valid())
	assert.False(t, Point{Latitude: math.NaN()}.Valid())
	assert.False(t, Point{Longitude: math.Inf(1)}.Valid())
	assert.False(t, Point{Latitude: 91}.Valid())
}
