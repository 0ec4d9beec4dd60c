package topic

import (
	"errors"
	"strings"
)

// ValidateSegment checks that s can be used as a single topic level.
func ValidateSegment(s string) error {
	switch {
	case s == "":
		return errors.New("topic segment must not be empty")
	case strings.ContainsAny(s, "/+#"):
		return errors.New("topic segment must not contain '/', '+' or '#'")
	case strings.HasPrefix(s, "$"):
		return errors.New("topic segment must not start with '$'")
	}
	return nil
}

// Builder encapsulates the logic for constructing fleet topic strings.
// Every topic has exactly three segments: {namespace}/{vehicleID}/{kind}.
type Builder struct {
	namespace   string
	statusKind  string
	commandKind string
	share       string
}

// NewBuilder creates a Builder. Empty arguments fall back to the package defaults.
func NewBuilder(namespace, statusKind, commandKind string) *Builder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if statusKind == "" {
		statusKind = KindStatus
	}
	if commandKind == "" {
		commandKind = KindCommand
	}
	return &Builder{namespace: namespace, statusKind: statusKind, commandKind: commandKind}
}

// Shared returns a copy of the builder whose wildcard filters subscribe through
// the MQTT v5 shared subscription group.
func (b *Builder) Shared(group string) *Builder {
	cp := *b
	cp.share = group
	return &cp
}

func (b *Builder) Namespace() string   { return b.namespace }
func (b *Builder) StatusKind() string  { return b.statusKind }
func (b *Builder) CommandKind() string { return b.commandKind }

// Status returns the status topic of a single vehicle.
// Direction: Unit -> Hub
func (b *Builder) Status(vehicleID string) string {
	return b.build(vehicleID, b.statusKind)
}

// Command returns the command topic of a single vehicle.
// Direction: Hub -> Unit
func (b *Builder) Command(vehicleID string) string {
	return b.build(vehicleID, b.commandKind)
}

// Build returns the topic of kind for a single vehicle or subject.
func (b *Builder) Build(id, kind string) string {
	return b.build(id, kind)
}

// StatusWildcard returns the filter matching the status topic of every vehicle.
// Result: {namespace}/+/status
func (b *Builder) StatusWildcard() string {
	return b.prefix() + b.build(Wildcard, b.statusKind)
}

func (b *Builder) prefix() string {
	if b.share == "" {
		return ""
	}
	return "$share/" + b.share + "/"
}

func (b *Builder) build(id, kind string) string {
	return strings.Join([]string{b.namespace, id, kind}, "/")
}
