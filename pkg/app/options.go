package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions abstracts the options of a command: named flag sets for
// help output, plus completion and validation run before the command starts.
type NamedFlagSetOptions interface {
	// Flags returns the flag sets grouped by section name.
	Flags() cliflag.NamedFlagSets
	// Complete fills in fields derived from other fields.
	Complete() error
	// Validate checks the options and aggregates every problem found.
	Validate() error
}
