package ingest

import (
	"strings"

	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

// Kind is the channel a topic belongs to.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindStatus
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindCommand:
		return "command"
	default:
		return "unrecognized"
	}
}

// Topic is a parsed <namespace>/<vehicleID>/<kind> topic.
type Topic struct {
	Namespace string
	VehicleID string
	Kind      Kind
}

// ParseTopic splits raw according to the layout of b. It reports false when
// raw is not a fleet topic at all: wrong segment count, another namespace or
// an empty or wildcard vehicle ID. An unknown kind segment parses as
// KindUnrecognized.
func ParseTopic(b *topic.Builder, raw string) (Topic, bool) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return Topic{}, false
	}
	ns, id, kind := parts[0], parts[1], parts[2]
	if ns != b.Namespace() || id == "" || id == topic.Wildcard || id == topic.MultiWildcard {
		return Topic{}, false
	}

	t := Topic{Namespace: ns, VehicleID: id, Kind: KindUnrecognized}
	switch kind {
	case b.StatusKind():
		t.Kind = KindStatus
	case b.CommandKind():
		t.Kind = KindCommand
	}
	return t, true
}
