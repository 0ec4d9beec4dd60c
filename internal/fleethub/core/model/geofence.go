package model

import "time"

// SubjectKind distinguishes the entities the geofence monitor tracks.
type SubjectKind string

const (
	SubjectUser    SubjectKind = "user"
	SubjectVehicle SubjectKind = "vehicle"
)

// GeofenceEventType is the kind of membership transition.
type GeofenceEventType string

const (
	GeofenceEntered GeofenceEventType = "entered"
	GeofenceExited  GeofenceEventType = "exited"
)

// GeofenceEvent is emitted once per restricted-zone membership transition.
type GeofenceEvent struct {
	SubjectID   string            `json:"subjectID"`
	SubjectKind SubjectKind       `json:"subjectKind"`
	Type        GeofenceEventType `json:"type"`
	ZoneID      string            `json:"zoneID"`
	Position    Point             `json:"position"`
	Time        time.Time         `json:"time"`
}

// DiagnosticKind classifies recoverable ingestion problems.
type DiagnosticKind string

const (
	DiagnosticMalformedPayload DiagnosticKind = "MalformedPayload"
)

// Diagnostic reports a message that was dropped during ingestion.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Topic     string         `json:"topic"`
	VehicleID string         `json:"vehicleID"`
	Reason    string         `json:"reason"`
	Time      time.Time      `json:"time"`
}
