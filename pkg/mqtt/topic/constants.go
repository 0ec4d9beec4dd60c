package topic

// Standard MQTT wildcard definitions.
const (
	// Wildcard is the single-level wildcard "+".
	// It matches exactly one topic level.
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#".
	// It must be the last character in the topic filter.
	MultiWildcard = "#"
)

// Default topic segments of the fleet protocol.
// Changing these values breaks compatibility with deployed units.
const (
	// DefaultNamespace is the first segment of every fleet topic.
	DefaultNamespace = "fleet"

	// KindStatus is the upstream status channel (Unit -> Hub).
	// Structure: {namespace}/{vehicleID}/status
	KindStatus = "status"

	// KindCommand is the downstream command channel (Hub -> Unit).
	// Structure: {namespace}/{vehicleID}/src
	KindCommand = "src"

	// KindGeofence carries geofence events published by the hub.
	// Structure: {namespace}/{subjectID}/geofence
	KindGeofence = "geofence"
)
