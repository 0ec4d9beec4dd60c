// Package command publishes commands to vehicles with at-least-once delivery.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/mqtt"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
	"github.com/autopeer-io/fleethub/pkg/options"
)

var (
	ErrCommandTimeout   = errors.New("command timed out")
	ErrCommandFailed    = errors.New("command failed")
	ErrCommandCancelled = errors.New("command cancelled")

	ErrUnsupportedAction = errors.New("unsupported command action")
	ErrQueueFull         = errors.New("command queue is full")
	ErrDispatcherStopped = errors.New("command dispatcher is stopped")
)

// commandQoS is the delivery guarantee of the command channel.
const commandQoS = 1

// Config tunes a Dispatcher.
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Timeout        time.Duration
	InitialBackoff time.Duration
	BackoffFactor  float64
	Workers        int
	QueueSize      int
}

// ConfigFromOptions converts the command line options.
func ConfigFromOptions(o *options.CommandOptions) Config {
	return Config{
		MaxAttempts:    o.MaxAttempts,
		AttemptTimeout: o.AttemptTimeout,
		Timeout:        o.Timeout,
		InitialBackoff: o.InitialBackoff,
		BackoffFactor:  o.BackoffFactor,
		Workers:        o.Workers,
		QueueSize:      o.QueueSize,
	}
}

func (c *Config) setDefaults() {
	d := options.NewCommandOptions()
	if c.MaxAttempts < 1 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.QueueSize < 1 {
		c.QueueSize = d.QueueSize
	}
}

// Dispatcher publishes commands on a fixed pool of workers, so Send never
// waits on the broker.
type Dispatcher struct {
	cfg      Config
	client   mqtt.Client
	topics   *topic.Builder
	registry *registry.Registry
	clock    clock.PassiveClock
	logger   log.Logger

	queue   chan *Pending
	stopped chan struct{}
	stop    sync.Once

	mu      sync.Mutex
	pending map[string]*Pending
}

func New(cfg Config, client mqtt.Client, topics *topic.Builder, reg *registry.Registry) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		cfg:      cfg,
		client:   client,
		topics:   topics,
		registry: reg,
		clock:    clock.RealClock{},
		logger:   log.WithName("command"),
		queue:    make(chan *Pending, cfg.QueueSize),
		stopped:  make(chan struct{}),
		pending:  make(map[string]*Pending),
	}
}

// Start runs the publish workers until ctx is done, then cancels every
// command still in flight.
func (d *Dispatcher) Start(ctx context.Context) error {
	log.Info("Starting command dispatcher", "workers", d.cfg.Workers, "maxAttempts", d.cfg.MaxAttempts)

	var wg sync.WaitGroup
	for range d.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	<-ctx.Done()
	d.stop.Do(func() { close(d.stopped) })
	for _, p := range d.inflight() {
		p.Cancel()
	}
	wg.Wait()
	log.Info("Command dispatcher stopped")
	return nil
}

// Send issues action to vehicleID and returns immediately. ctx only bounds
// enqueuing; the command lives until its own deadline.
func (d *Dispatcher) Send(ctx context.Context, vehicleID string, action model.CommandAction) (*Pending, error) {
	if action != model.ActionUnlock {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	select {
	case <-d.stopped:
		return nil, ErrDispatcherStopped
	default:
	}

	pctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	p := &Pending{
		d:      d,
		ctx:    pctx,
		cancel: cancel,
		done:   make(chan struct{}),
		cmd: model.Command{
			Token:     uuid.NewString(),
			VehicleID: vehicleID,
			Action:    action,
			Status:    model.CommandStatusPending,
			CreatedAt: d.clock.Now(),
		},
	}

	d.mu.Lock()
	d.pending[p.cmd.Token] = p
	d.mu.Unlock()

	// A command that outlives its deadline resolves even if no worker picked it up.
	context.AfterFunc(pctx, func() {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			p.complete(model.CommandStatusTimedOut, ErrCommandTimeout, nil)
		}
	})

	select {
	case d.queue <- p:
		d.logger.Debug("Command queued", "vehicle", vehicleID, "action", action, "token", p.cmd.Token)
		return p, nil
	case <-ctx.Done():
		p.Cancel()
		return nil, ctx.Err()
	case <-d.stopped:
		p.Cancel()
		return nil, ErrDispatcherStopped
	default:
		p.Cancel()
		return nil, ErrQueueFull
	}
}

// Lookup returns the in-flight command with token.
func (d *Dispatcher) Lookup(token string) (*Pending, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[token]
	return p, ok
}

// AwaitConfirmation waits until vehicleID reports itself unavailable in a
// status newer than version since. Optimistic local writes do not count.
func (d *Dispatcher) AwaitConfirmation(ctx context.Context, vehicleID string, since uint64, timeout time.Duration) (model.VehicleState, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := d.registry.WaitFor(ctx, vehicleID, func(s model.VehicleState) bool {
		return s.Version > since && !s.Available && !s.Optimistic
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return s, fmt.Errorf("%w: %s did not confirm within %s", ErrCommandTimeout, vehicleID, timeout)
	}
	return s, err
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-d.queue:
			d.publish(p)
		}
	}
}

func (d *Dispatcher) publish(p *Pending) {
	if p.ctx.Err() != nil {
		return
	}

	payload, err := json.Marshal(model.CommandPayload{Action: p.cmd.Action})
	if err != nil {
		p.complete(model.CommandStatusFailed, fmt.Errorf("%w: %v", ErrCommandFailed, err), nil)
		return
	}
	dest := d.topics.Command(p.cmd.VehicleID)
	logger := d.logger.WithValues("vehicle", p.cmd.VehicleID, "token", p.cmd.Token)

	backoff := wait.Backoff{
		Duration: d.cfg.InitialBackoff,
		Factor:   d.cfg.BackoffFactor,
		Jitter:   0.1,
		Steps:    d.cfg.MaxAttempts,
	}

	var lastErr error
	err = wait.ExponentialBackoffWithContext(p.ctx, backoff, func(ctx context.Context) (bool, error) {
		n := p.attempt()
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()

		perr := d.client.Publish(attemptCtx, dest, commandQoS, false, payload,
			mqtt.WithCorrelationData([]byte(p.cmd.Token)),
			mqtt.WithContentType("application/json"),
		)
		if perr != nil {
			metrics.CommandPublishAttemptsTotal.WithLabelValues("error").Inc()
			logger.Warn("Command publish attempt failed", "attempt", n, "err", perr.Error())
			lastErr = perr
			return false, nil
		}
		metrics.CommandPublishAttemptsTotal.WithLabelValues("ok").Inc()
		return true, nil
	})

	switch {
	case err == nil:
		acked := p.complete(model.CommandStatusAcknowledged, nil, func(cmd model.Command) {
			if _, ok := d.registry.SetAvailability(cmd.VehicleID, false); !ok {
				logger.Warn("Acknowledged command for a vehicle no longer in the registry")
			}
		})
		if acked {
			logger.Info("Command acknowledged by broker", "attempts", p.cmd.Attempts)
		} else {
			logger.Info("Ignoring broker ack of a resolved command")
		}
	case errors.Is(p.ctx.Err(), context.DeadlineExceeded):
		p.complete(model.CommandStatusTimedOut, fmt.Errorf("%w: last error: %v", ErrCommandTimeout, lastErr), nil)
	case p.ctx.Err() != nil:
		// Cancelled; Pending already resolved.
	default:
		p.complete(model.CommandStatusFailed, fmt.Errorf("%w after %d attempts: %v", ErrCommandFailed, d.cfg.MaxAttempts, lastErr), nil)
	}
}

// finish is called once per command after it resolved.
func (d *Dispatcher) finish(cmd model.Command) {
	d.mu.Lock()
	delete(d.pending, cmd.Token)
	d.mu.Unlock()

	metrics.CommandSentTotal.WithLabelValues(string(cmd.Status), string(cmd.Action)).Inc()
	metrics.CommandLatency.WithLabelValues(string(cmd.Action)).Observe(d.clock.Since(cmd.CreatedAt).Seconds())
}

func (d *Dispatcher) inflight() []*Pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Pending, 0, len(d.pending))
	for _, p := range d.pending {
		out = append(out, p)
	}
	return out
}
