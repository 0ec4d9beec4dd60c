package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	now := time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)
	doc := []byte(`[
		{"id":"unit42","name":"Test Scooter1","batteryLevel":87,"latitude":35.2310,"longitude":-97.4775,"isAvailable":true},
		{"id":"unit43","batteryLevel":12,"latitude":35.2055,"longitude":-97.4450,"isAvailable":false,"timestamp":1747310405000}
	]`)

	states, err := DecodeSnapshot(doc, now)
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, "unit42", states[0].ID)
	assert.Equal(t, "Test Scooter1", states[0].DisplayName())
	assert.Equal(t, now, states[0].Timestamp)

	assert.Equal(t, "unit43", states[1].ID)
	assert.Equal(t, time.UnixMilli(1747310405000).UTC(), states[1].Timestamp)
	assert.False(t, states[1].Available)
}

func TestDecodeSnapshotRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"not an array":  `{"id":"unit42"}`,
		"missing id":    `[{"batteryLevel":87,"latitude":1,"longitude":1,"isAvailable":true}]`,
		"missing field": `[{"id":"unit42","latitude":1,"longitude":1,"isAvailable":true}]`,
		"bad position":  `[{"id":"unit42","batteryLevel":87,"latitude":91,"longitude":1,"isAvailable":true}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(doc), time.Now())
			assert.Error(t, err)
		})
	}

	states, err := DecodeSnapshot([]byte(`[]`), time.Now())
	require.NoError(t, err)
	assert.Empty(t, states)
}
