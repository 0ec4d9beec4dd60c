package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/pkg/mqtt/mqtttest"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

type published struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	published  []published
	publishErr error
	queued     int
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.published = append(f.published, published{channel, message.([]byte)})
	return redis.NewIntResult(1, f.publishErr)
}

func (f *fakeRedis) Pipelined(_ context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	// The pipeline is never executed; only the queued commands are counted.
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer c.Close()
	pipe := c.Pipeline()
	if err := fn(pipe); err != nil {
		return nil, err
	}
	f.queued += pipe.Len()
	return nil, nil
}

var sampleEvent = model.GeofenceEvent{
	SubjectID:   "user-7",
	SubjectKind: model.SubjectUser,
	Type:        model.GeofenceEntered,
	ZoneID:      "campus-oval",
	Position:    model.Point{Latitude: 35.205, Longitude: -97.445},
	Time:        time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC),
}

func TestRedisNotifierChannels(t *testing.T) {
	f := &fakeRedis{}
	n := NewRedisNotifier(f, "fleethub", time.Minute)

	n.NotifyGeofence(context.Background(), sampleEvent)
	n.NotifyDiagnostic(context.Background(), model.Diagnostic{Kind: model.DiagnosticMalformedPayload, VehicleID: "v"})

	require.Len(t, f.published, 2)
	assert.Equal(t, "fleethub:geofence:user-7", f.published[0].channel)
	assert.Equal(t, "fleethub:diagnostics", f.published[1].channel)

	var got model.GeofenceEvent
	require.NoError(t, json.Unmarshal(f.published[0].payload, &got))
	assert.Equal(t, sampleEvent, got)
}

func TestRedisNotifierPublishErrorIsSwallowed(t *testing.T) {
	f := &fakeRedis{publishErr: errors.New("connection refused")}
	n := NewRedisNotifier(f, "fleethub", 0)

	assert.NotPanics(t, func() { n.NotifyGeofence(context.Background(), sampleEvent) })
	assert.Len(t, f.published, 1)
}

func TestRedisMirrorState(t *testing.T) {
	f := &fakeRedis{}

	require.NoError(t, NewRedisNotifier(f, "fleethub", time.Minute).MirrorState(context.Background(), model.VehicleState{ID: "unit42"}))
	assert.Equal(t, 3, f.queued)

	f.queued = 0
	require.NoError(t, NewRedisNotifier(f, "fleethub", 0).MirrorState(context.Background(), model.VehicleState{ID: "unit42"}))
	assert.Equal(t, 2, f.queued)
}

func TestMQTTNotifier(t *testing.T) {
	client := mqtttest.NewClient()
	n := NewMQTTNotifier(client, topic.NewBuilder("", "", ""), topic.KindGeofence)

	n.NotifyGeofence(context.Background(), sampleEvent)
	n.NotifyDiagnostic(context.Background(), model.Diagnostic{})

	pub := client.Published()
	require.Len(t, pub, 1)
	assert.Equal(t, "fleet/user-7/geofence", pub[0].Topic)
	assert.Equal(t, "application/json", pub[0].Options.ContentType)
}

type countingNotifier struct{ geofence, diagnostics int }

func (c *countingNotifier) NotifyGeofence(context.Context, model.GeofenceEvent) { c.geofence++ }
func (c *countingNotifier) NotifyDiagnostic(context.Context, model.Diagnostic)  { c.diagnostics++ }

func TestFanout(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	f := Fanout{a, NewLogNotifier(), b}

	f.NotifyGeofence(context.Background(), sampleEvent)
	f.NotifyDiagnostic(context.Background(), model.Diagnostic{})
	f.NotifyDiagnostic(context.Background(), model.Diagnostic{})

	assert.Equal(t, 1, a.geofence)
	assert.Equal(t, 2, b.diagnostics)
}

type recordingNotifier struct {
	mu      sync.Mutex
	events  []model.GeofenceEvent
	states  []model.VehicleState
	release chan struct{}
}

func (r *recordingNotifier) NotifyGeofence(_ context.Context, ev model.GeofenceEvent) {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) NotifyDiagnostic(context.Context, model.Diagnostic) {}

func (r *recordingNotifier) MirrorState(_ context.Context, s model.VehicleState) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	return nil
}

func (r *recordingNotifier) snapshot() ([]model.GeofenceEvent, []model.VehicleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events), slices.Clone(r.states)
}

func startQueue(t *testing.T, q *Queue) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestQueueNeverBlocksOnSlowDownstream(t *testing.T) {
	slow := &recordingNotifier{release: make(chan struct{})}
	q := NewQueue(slow, slow, 2)
	startQueue(t, q)
	defer close(slow.release)

	start := time.Now()
	for i := range 10 {
		ev := sampleEvent
		ev.ZoneID = fmt.Sprintf("zone-%d", i)
		q.NotifyGeofence(context.Background(), ev)
	}
	err := q.MirrorState(context.Background(), model.VehicleState{ID: "unit42"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// One item is held by the worker, two fill the buffer; the rest were dropped.
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueDeliversInOrder(t *testing.T) {
	rec := &recordingNotifier{}
	q := NewQueue(rec, rec, 64)
	startQueue(t, q)

	for i := range 20 {
		require.NoError(t, q.MirrorState(context.Background(), model.VehicleState{ID: "unit42", Version: uint64(i + 1)}))
	}
	q.NotifyGeofence(context.Background(), sampleEvent)

	require.Eventually(t, func() bool {
		events, states := rec.snapshot()
		return len(events) == 1 && len(states) == 20
	}, 2*time.Second, 5*time.Millisecond)

	_, states := rec.snapshot()
	for i, s := range states {
		assert.Equal(t, uint64(i+1), s.Version)
	}
}

func TestQueueDrainsOnStop(t *testing.T) {
	rec := &recordingNotifier{}
	q := NewQueue(rec, nil, 8)

	// Accepted before the worker runs.
	q.NotifyGeofence(context.Background(), sampleEvent)
	q.NotifyGeofence(context.Background(), sampleEvent)
	require.NoError(t, q.MirrorState(context.Background(), model.VehicleState{ID: "ignored"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Start(ctx))

	events, states := rec.snapshot()
	assert.Len(t, events, 2)
	assert.Empty(t, states)
}
