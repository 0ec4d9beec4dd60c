package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// statusPayload is the wire form of a unit status report.
// The four state fields are mandatory; pointers tell absent from zero.
type statusPayload struct {
	BatteryLevel *int            `json:"batteryLevel"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	IsAvailable  *bool           `json:"isAvailable"`
	Timestamp    json.RawMessage `json:"timestamp,omitempty"`
	Name         *string         `json:"name,omitempty"`
}

// decodeStatus validates payload and returns the status plus the embedded
// timestamp, zero when the unit sent none.
func decodeStatus(payload []byte) (model.VehicleStatus, time.Time, error) {
	var p statusPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&p); err != nil {
		return model.VehicleStatus{}, time.Time{}, fmt.Errorf("invalid json: %w", err)
	}
	if dec.More() {
		return model.VehicleStatus{}, time.Time{}, errors.New("trailing data after status object")
	}

	var missing []string
	if p.BatteryLevel == nil {
		missing = append(missing, "batteryLevel")
	}
	if p.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if p.Longitude == nil {
		missing = append(missing, "longitude")
	}
	if p.IsAvailable == nil {
		missing = append(missing, "isAvailable")
	}
	if len(missing) > 0 {
		return model.VehicleStatus{}, time.Time{}, fmt.Errorf("missing fields %v", missing)
	}

	pos := model.Point{Latitude: *p.Latitude, Longitude: *p.Longitude}
	if !pos.Valid() {
		return model.VehicleStatus{}, time.Time{}, fmt.Errorf("position %v,%v out of range", pos.Latitude, pos.Longitude)
	}

	ts, err := decodeTimestamp(p.Timestamp)
	if err != nil {
		return model.VehicleStatus{}, time.Time{}, err
	}

	return model.VehicleStatus{
		Position:  pos,
		Battery:   *p.BatteryLevel,
		Available: *p.IsAvailable,
		Name:      p.Name,
	}, ts, nil
}

// decodeTimestamp accepts an RFC 3339 string or unix milliseconds.
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		return ts.UTC(), nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	if ms <= 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %d", ms)
	}
	return time.UnixMilli(ms).UTC(), nil
}
