package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleethub/internal/fleethub/command"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/fleethub/geofence"
	"github.com/autopeer-io/fleethub/internal/fleethub/geometry"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
	"github.com/autopeer-io/fleethub/pkg/mqtt/mqtttest"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

var t0 = time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

var oval = model.RestrictionZone{ID: "campus-oval", Ring: []model.Point{
	{Latitude: 35.20, Longitude: -97.45},
	{Latitude: 35.20, Longitude: -97.44},
	{Latitude: 35.21, Longitude: -97.44},
	{Latitude: 35.21, Longitude: -97.45},
}}

var (
	inOval  = model.Point{Latitude: 35.205, Longitude: -97.445}
	outOval = model.Point{Latitude: 35.2310, Longitude: -97.4775}
)

func newTestService(t *testing.T) (*Service, *registry.Registry, *mqtttest.Client) {
	t.Helper()

	reg := registry.New()
	geo := geometry.New([]model.RestrictionZone{oval}, nil)
	mon := geofence.New(geo, nil)
	client := mqtttest.NewClient()
	d := command.New(command.Config{InitialBackoff: time.Millisecond}, client, topic.NewBuilder("", "", ""), reg)

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

	return New(reg, geo, mon, d, time.Second), reg, client
}

func TestGetVehicle(t *testing.T) {
	svc, reg, _ := newTestService(t)

	_, err := svc.GetVehicle("nope")
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	reg.Upsert("unit42", model.VehicleStatus{Position: outOval, Battery: 87, Available: true}, t0)
	v, err := svc.GetVehicle("unit42")
	require.NoError(t, err)
	assert.Equal(t, 87, v.Battery)
	assert.Len(t, svc.ListVehicles(), 1)
}

func TestRequestUnlockRefusals(t *testing.T) {
	svc, reg, client := newTestService(t)
	ctx := context.Background()

	_, err := svc.RequestUnlock(ctx, "ghost")
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	reg.Upsert("busy", model.VehicleStatus{Position: outOval, Available: false}, t0)
	_, err = svc.RequestUnlock(ctx, "busy")
	assert.ErrorIs(t, err, ErrVehicleUnavailable)

	reg.Upsert("parked", model.VehicleStatus{Position: inOval, Available: true}, t0)
	_, err = svc.RequestUnlock(ctx, "parked")
	assert.ErrorIs(t, err, ErrVehicleRestricted)
	assert.Contains(t, err.Error(), "campus-oval")

	assert.Empty(t, client.Published())
}

func TestRequestAndConfirmUnlock(t *testing.T) {
	svc, reg, client := newTestService(t)
	ctx := context.Background()
	reg.Upsert("unit42", model.VehicleStatus{Position: outOval, Battery: 87, Available: true}, t0)

	u, err := svc.RequestUnlock(ctx, "unit42")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u.Before.Version)

	go func() {
		<-u.Done()
		time.Sleep(10 * time.Millisecond)
		reg.Upsert("unit42", model.VehicleStatus{Position: outOval, Battery: 87, Available: false}, t0.Add(time.Second))
	}()

	v, err := svc.ConfirmUnlock(ctx, u, 0)
	require.NoError(t, err)
	assert.False(t, v.Available)
	assert.False(t, v.Optimistic)

	cmd, err := u.Result()
	require.NoError(t, err)
	assert.Equal(t, model.CommandStatusAcknowledged, cmd.Status)
	assert.Len(t, client.Published(), 1)
}

func TestConfirmUnlockTimeout(t *testing.T) {
	svc, reg, _ := newTestService(t)
	reg.Upsert("unit42", model.VehicleStatus{Position: outOval, Available: true}, t0)

	u, err := svc.RequestUnlock(context.Background(), "unit42")
	require.NoError(t, err)

	_, err = svc.ConfirmUnlock(context.Background(), u, 50*time.Millisecond)
	assert.ErrorIs(t, err, command.ErrCommandTimeout)

	// The optimistic write is visible meanwhile.
	v, _ := svc.GetVehicle("unit42")
	assert.False(t, v.Available)
	assert.True(t, v.Optimistic)
}

func TestReportPosition(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ReportPosition(ctx, "user-7", 95, 0)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, _, err = svc.ReportPosition(ctx, "", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	events, cancel := svc.ObserveGeofenceEvents("user-7")
	defer cancel()

	_, fired, err := svc.ReportPosition(ctx, "user-7", outOval.Latitude, outOval.Longitude)
	require.NoError(t, err)
	assert.False(t, fired)

	ev, fired, err := svc.ReportPosition(ctx, "user-7", inOval.Latitude, inOval.Longitude)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, model.GeofenceEntered, ev.Type)
	assert.Equal(t, "campus-oval", ev.ZoneID)
	assert.Equal(t, ev, <-events)

	st, ok := svc.SubjectState("user-7")
	require.True(t, ok)
	assert.Equal(t, geofence.StateInside, st.State)

	assert.True(t, svc.CloseSubject("user-7"))
	_, open := <-events
	assert.False(t, open)
}

func TestRemoveVehicle(t *testing.T) {
	svc, reg, _ := newTestService(t)
	reg.Upsert("unit42", model.VehicleStatus{Position: outOval}, t0)

	require.NoError(t, svc.RemoveVehicle("unit42"))
	assert.ErrorIs(t, svc.RemoveVehicle("unit42"), ErrVehicleNotFound)
	assert.Empty(t, svc.ListVehicles())
}

func TestZonesAndBorders(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.Len(t, svc.Zones(), 1)
	assert.Equal(t, "campus-oval", svc.Zones()[0].ID)
	assert.Empty(t, svc.Borders())
}

func TestCancelCommand(t *testing.T) {
	svc, reg, client := newTestService(t)
	reg.Upsert("unit42", model.VehicleStatus{Position: outOval, Available: true}, t0)

	release := make(chan struct{})
	client.PublishFunc = func(ctx context.Context, _ mqtttest.Message) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer close(release)

	_, err := svc.CancelCommand("nope")
	assert.ErrorIs(t, err, ErrCommandNotFound)

	u, err := svc.RequestUnlock(context.Background(), "unit42")
	require.NoError(t, err)

	cmd, err := svc.CancelCommand(u.Token())
	require.NoError(t, err)
	assert.Equal(t, model.CommandStatusCancelled, cmd.Status)

	_, inflight := svc.LookupCommand(u.Token())
	assert.False(t, inflight)
	_, err = u.Result()
	assert.ErrorIs(t, err, command.ErrCommandCancelled)
}
