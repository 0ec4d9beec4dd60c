package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*CommandOptions)(nil)

// CommandOptions tunes the outbound command dispatcher.
type CommandOptions struct {
	// MaxAttempts bounds transport publish attempts per command.
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// AttemptTimeout bounds a single publish waiting for the broker ack.
	AttemptTimeout time.Duration `json:"attempt-timeout" mapstructure:"attempt-timeout"`

	// Timeout is the overall deadline of a command, retries included.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// ConfirmTimeout bounds waiting for the unit to report itself unavailable after an unlock.
	ConfirmTimeout time.Duration `json:"confirm-timeout" mapstructure:"confirm-timeout"`

	InitialBackoff time.Duration `json:"initial-backoff" mapstructure:"initial-backoff"`
	BackoffFactor  float64       `json:"backoff-factor" mapstructure:"backoff-factor"`

	Workers   int `json:"workers" mapstructure:"workers"`
	QueueSize int `json:"queue-size" mapstructure:"queue-size"`
}

func NewCommandOptions() *CommandOptions {
	return &CommandOptions{
		MaxAttempts:    3,
		AttemptTimeout: 5 * time.Second,
		Timeout:        20 * time.Second,
		ConfirmTimeout: 15 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		BackoffFactor:  2,
		Workers:        4,
		QueueSize:      256,
	}
}

func (o *CommandOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("command.max-attempts must be at least 1, got %d", o.MaxAttempts))
	}
	if o.AttemptTimeout <= 0 || o.Timeout <= 0 || o.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command timeouts must be positive"))
	}
	if o.Timeout < o.AttemptTimeout {
		errs = append(errs, fmt.Errorf("command.timeout %s is shorter than command.attempt-timeout %s", o.Timeout, o.AttemptTimeout))
	}
	if o.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("command.backoff-factor must be >= 1, got %v", o.BackoffFactor))
	}
	if o.Workers < 1 || o.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("command.workers and command.queue-size must be positive"))
	}
	return errs
}

func (o *CommandOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.MaxAttempts, "command.max-attempts", o.MaxAttempts, "Maximum publish attempts per command.")
	fs.DurationVar(&o.AttemptTimeout, "command.attempt-timeout", o.AttemptTimeout, "Timeout of a single publish attempt.")
	fs.DurationVar(&o.Timeout, "command.timeout", o.Timeout, "Overall deadline of a command including retries.")
	fs.DurationVar(&o.ConfirmTimeout, "command.confirm-timeout", o.ConfirmTimeout, "How long to wait for a unit to confirm an unlock.")
	fs.DurationVar(&o.InitialBackoff, "command.initial-backoff", o.InitialBackoff, "Delay before the first publish retry.")
	fs.Float64Var(&o.BackoffFactor, "command.backoff-factor", o.BackoffFactor, "Multiplier applied to the retry delay after each attempt.")
	fs.IntVar(&o.Workers, "command.workers", o.Workers, "Number of publish workers.")
	fs.IntVar(&o.QueueSize, "command.queue-size", o.QueueSize, "Capacity of the pending publish queue.")
}
