package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// DecodeSnapshot parses a bulk fleet snapshot: a JSON array of status objects
// that each carry an "id". Records without a timestamp are stamped with now.
// A single invalid record fails the whole document.
func DecodeSnapshot(doc []byte, now time.Time) ([]model.VehicleState, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(doc, &records); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	out := make([]model.VehicleState, 0, len(records))
	for i, rec := range records {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(rec, &head); err != nil {
			return nil, fmt.Errorf("snapshot record %d: %w", i, err)
		}
		if head.ID == "" {
			return nil, fmt.Errorf("snapshot record %d: missing id", i)
		}

		status, ts, err := decodeStatus(rec)
		if err != nil {
			return nil, fmt.Errorf("snapshot record %d (%s): %w", i, head.ID, err)
		}
		if ts.IsZero() {
			ts = now
		}
		out = append(out, model.VehicleState{
			ID:        head.ID,
			Position:  status.Position,
			Battery:   status.Battery,
			Available: status.Available,
			Timestamp: ts,
			Name:      status.Name,
		})
	}
	return out, nil
}
