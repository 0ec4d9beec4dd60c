package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := NewFleetctlCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVehiclesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/vehicles", r.URL.Path)
		w.Write([]byte(`[{"id":"unit42","name":"Test Scooter1","batteryLevel":87,"isAvailable":false,"optimistic":true,
			"position":{"latitude":35.231,"longitude":-97.4775},"timestamp":"2025-05-15T12:00:05Z"}]`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "vehicles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "unit42")
	assert.Contains(t, out, "Test Scooter1")
	assert.Contains(t, out, "87%")
	assert.Contains(t, out, "false (pending)")

	out, err = run(t, srv, "vehicles", "list", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"batteryLevel": 87`)
}

func TestUnlockRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"vehicle is not available: unit42"}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "unlock", "unit42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestSubjectPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"event":{"subjectID":"user-7","type":"entered","zoneID":"campus-oval"}}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "subjects", "position", "user-7", "35.205", "-97.445")
	require.NoError(t, err)
	assert.Equal(t, "user-7 entered campus-oval\n", out)

	_, err = run(t, srv, "subjects", "position", "user-7", "north", "-97.445")
	assert.Error(t, err)
}

func TestInvalidOutput(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := run(t, srv, "zones", "-o", "yaml")
	assert.Error(t, err)
}

func TestCancelCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/commands/tok-1", r.URL.Path)
		w.Write([]byte(`{"token":"tok-1","vehicleID":"unit42","action":"unlock","attempts":1,"status":"Cancelled"}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "cancel", "tok-1")
	require.NoError(t, err)
	assert.Contains(t, out, "tok-1")
	assert.Contains(t, out, "Cancelled")
}
