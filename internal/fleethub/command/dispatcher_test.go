package command

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
	"github.com/autopeer-io/fleethub/pkg/mqtt/mqtttest"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

var t0 = time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: 200 * time.Millisecond,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  1,
		Workers:        2,
		QueueSize:      16,
	}
}

func startDispatcher(t *testing.T, cfg Config) (*Dispatcher, *mqtttest.Client, *registry.Registry) {
	t.Helper()

	client := mqtttest.NewClient()
	reg := registry.New()
	reg.Upsert("unit42", model.VehicleStatus{Battery: 87, Available: true}, t0)

	d := New(cfg, client, topic.NewBuilder("", "", ""), reg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d, client, reg
}

func waitResult(t *testing.T, p *Pending) (model.Command, error) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("command did not resolve")
	}
	return p.Result()
}

func TestSendAcknowledged(t *testing.T) {
	d, client, reg := startDispatcher(t, testConfig())

	p, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)

	cmd, err := waitResult(t, p)
	require.NoError(t, err)
	assert.Equal(t, model.CommandStatusAcknowledged, cmd.Status)
	assert.Equal(t, 1, cmd.Attempts)

	pub := client.Published()
	require.Len(t, pub, 1)
	assert.Equal(t, "fleet/unit42/src", pub[0].Topic)
	assert.Equal(t, 1, pub[0].QoS)
	assert.Equal(t, []byte(p.Token()), pub[0].Options.CorrelationData)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(pub[0].Payload, &payload))
	assert.Equal(t, map[string]string{"action": "unlock"}, payload)

	s, _ := reg.Get("unit42")
	assert.False(t, s.Available)
	assert.True(t, s.Optimistic)

	_, inflight := d.Lookup(p.Token())
	assert.False(t, inflight)
}

func TestSendDistinctTokens(t *testing.T) {
	d, client, _ := startDispatcher(t, testConfig())

	p1, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)
	p2, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)

	assert.NotEqual(t, p1.Token(), p2.Token())
	waitResult(t, p1)
	waitResult(t, p2)

	pub := client.Published()
	require.Len(t, pub, 2)
	assert.NotEqual(t, pub[0].Options.CorrelationData, pub[1].Options.CorrelationData)
}

func TestSendRetriesThenFails(t *testing.T) {
	d, client, reg := startDispatcher(t, testConfig())
	client.PublishFunc = func(context.Context, mqtttest.Message) error {
		return errors.New("broker unavailable")
	}

	p, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)

	cmd, err := waitResult(t, p)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Equal(t, model.CommandStatusFailed, cmd.Status)
	assert.Equal(t, 3, cmd.Attempts)
	assert.Len(t, client.Published(), 3)

	s, _ := reg.Get("unit42")
	assert.True(t, s.Available)
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	d, client, _ := startDispatcher(t, testConfig())
	var calls atomic.Int32
	client.PublishFunc = func(context.Context, mqtttest.Message) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	p, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)

	cmd, err := waitResult(t, p)
	require.NoError(t, err)
	assert.Equal(t, model.CommandStatusAcknowledged, cmd.Status)
	assert.Equal(t, 3, cmd.Attempts)

	// Every retry carries the same token.
	for _, m := range client.Published() {
		assert.Equal(t, []byte(p.Token()), m.Options.CorrelationData)
	}
}

func TestSendTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.AttemptTimeout = 50 * time.Millisecond
	cfg.MaxAttempts = 10
	d, client, _ := startDispatcher(t, cfg)
	client.PublishFunc = func(ctx context.Context, _ mqtttest.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}

	p, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)

	cmd, err := waitResult(t, p)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.Equal(t, model.CommandStatusTimedOut, cmd.Status)
}

func TestCancelSuppressesLateAck(t *testing.T) {
	d, client, reg := startDispatcher(t, testConfig())

	release := make(chan struct{})
	entered := make(chan struct{})
	client.PublishFunc = func(context.Context, mqtttest.Message) error {
		close(entered)
		<-release
		// The broker acks even though the caller gave up.
		return nil
	}

	p, err := d.Send(context.Background(), "unit42", model.ActionUnlock)
	require.NoError(t, err)

	<-entered
	assert.True(t, p.Cancel())
	assert.False(t, p.Cancel())
	close(release)

	cmd, err := waitResult(t, p)
	assert.ErrorIs(t, err, ErrCommandCancelled)
	assert.Equal(t, model.CommandStatusCancelled, cmd.Status)

	// Give the worker time to observe the ack.
	time.Sleep(50 * time.Millisecond)
	s, _ := reg.Get("unit42")
	assert.True(t, s.Available)
	assert.False(t, s.Optimistic)
}

func TestSendUnsupportedAction(t *testing.T) {
	d, _, _ := startDispatcher(t, testConfig())

	_, err := d.Send(context.Background(), "unit42", model.CommandAction("lock"))
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}

func TestSendQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	// Not started: nothing drains the queue.
	d := New(cfg, mqtttest.NewClient(), topic.NewBuilder("", "", ""), registry.New())

	_, err := d.Send(context.Background(), "a", model.ActionUnlock)
	require.NoError(t, err)
	_, err = d.Send(context.Background(), "b", model.ActionUnlock)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueuedCommandTimesOutWithoutWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	d := New(cfg, mqtttest.NewClient(), topic.NewBuilder("", "", ""), registry.New())

	p, err := d.Send(context.Background(), "a", model.ActionUnlock)
	require.NoError(t, err)

	cmd, err := waitResult(t, p)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.Equal(t, model.CommandStatusTimedOut, cmd.Status)
	assert.Equal(t, 0, cmd.Attempts)
}

func TestStopCancelsInflight(t *testing.T) {
	client := mqtttest.NewClient()
	client.PublishFunc = func(ctx context.Context, _ mqtttest.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}
	d := New(testConfig(), client, topic.NewBuilder("", "", ""), registry.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	p, err := d.Send(context.Background(), "a", model.ActionUnlock)
	require.NoError(t, err)
	cancel()
	require.NoError(t, <-done)

	_, err = waitResult(t, p)
	assert.ErrorIs(t, err, ErrCommandCancelled)

	_, err = d.Send(context.Background(), "a", model.ActionUnlock)
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestAwaitConfirmation(t *testing.T) {
	d, _, reg := startDispatcher(t, testConfig())

	before, _ := reg.Get("unit42")
	reg.SetAvailability("unit42", false)

	go func() {
		time.Sleep(20 * time.Millisecond)
		reg.Upsert("unit42", model.VehicleStatus{Battery: 86, Available: false}, t0.Add(time.Second))
	}()

	s, err := d.AwaitConfirmation(context.Background(), "unit42", before.Version, time.Second)
	require.NoError(t, err)
	assert.False(t, s.Available)
	assert.False(t, s.Optimistic)
	assert.Equal(t, 86, s.Battery)
}

func TestAwaitConfirmationTimeout(t *testing.T) {
	d, _, reg := startDispatcher(t, testConfig())

	before, _ := reg.Get("unit42")
	reg.SetAvailability("unit42", false)

	_, err := d.AwaitConfirmation(context.Background(), "unit42", before.Version, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrCommandTimeout)
}
