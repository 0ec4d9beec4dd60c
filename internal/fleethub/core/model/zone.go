package model

// RestrictionZone is a closed polygon; the ring is implicitly closed.
type RestrictionZone struct {
	ID   string  `json:"id"`
	Name string  `json:"name,omitempty"`
	Ring []Point `json:"ring"`
}

// BoundaryLine is an advisory polyline. It never takes part in containment.
type BoundaryLine struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Points []Point `json:"points"`
}
