// Package client talks to a running hub over its HTTP API and gRPC health service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// APIError is a non-2xx answer of the hub.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub returned %d: %s", e.StatusCode, e.Message)
}

// UnlockResult is the outcome of an unlock request. Vehicle is set only when
// the request waited for confirmation.
type UnlockResult struct {
	Command model.Command       `json:"command"`
	Vehicle *model.VehicleState `json:"vehicle,omitempty"`
}

// SubjectState mirrors the hub's view of a geofence subject.
type SubjectState struct {
	ID         string            `json:"id"`
	Kind       model.SubjectKind `json:"kind"`
	State      string            `json:"state"`
	ZoneID     string            `json:"zoneID,omitempty"`
	HasAlerted bool              `json:"hasAlerted"`
}

// Client is a thin typed wrapper over the hub's REST API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the hub at baseURL, e.g. http://127.0.0.1:8080.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid hub url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid hub url %q: scheme must be http or https", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) ListVehicles(ctx context.Context) ([]model.VehicleState, error) {
	var out []model.VehicleState
	return out, c.do(ctx, http.MethodGet, "/api/v1/vehicles", nil, nil, &out)
}

func (c *Client) GetVehicle(ctx context.Context, id string) (model.VehicleState, error) {
	var out model.VehicleState
	return out, c.do(ctx, http.MethodGet, "/api/v1/vehicles/"+id, nil, nil, &out)
}

func (c *Client) RemoveVehicle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/vehicles/"+id, nil, nil, nil)
}

// Unlock requests an unlock. A positive wait blocks until the vehicle confirms.
func (c *Client) Unlock(ctx context.Context, id string, wait time.Duration) (UnlockResult, error) {
	q := url.Values{}
	if wait > 0 {
		q.Set("wait", wait.String())
	}
	var out UnlockResult
	return out, c.do(ctx, http.MethodPost, "/api/v1/vehicles/"+id+"/unlock", q, nil, &out)
}

func (c *Client) GetCommand(ctx context.Context, token string) (model.Command, error) {
	var out model.Command
	return out, c.do(ctx, http.MethodGet, "/api/v1/commands/"+token, nil, nil, &out)
}

// CancelCommand abandons an in-flight command and returns it as resolved.
func (c *Client) CancelCommand(ctx context.Context, token string) (model.Command, error) {
	var out model.Command
	return out, c.do(ctx, http.MethodDelete, "/api/v1/commands/"+token, nil, nil, &out)
}

// ReportPosition feeds a user position and returns the event it caused, if any.
func (c *Client) ReportPosition(ctx context.Context, subject string, lat, lon float64) (*model.GeofenceEvent, error) {
	body := map[string]float64{"latitude": lat, "longitude": lon}
	var out struct {
		Event *model.GeofenceEvent `json:"event,omitempty"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/subjects/"+subject+"/position", nil, body, &out)
	return out.Event, err
}

func (c *Client) GetSubject(ctx context.Context, subject string) (SubjectState, error) {
	var out SubjectState
	return out, c.do(ctx, http.MethodGet, "/api/v1/subjects/"+subject, nil, nil, &out)
}

func (c *Client) CloseSubject(ctx context.Context, subject string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/subjects/"+subject, nil, nil, nil)
}

func (c *Client) Zones(ctx context.Context) ([]model.RestrictionZone, error) {
	var out []model.RestrictionZone
	return out, c.do(ctx, http.MethodGet, "/api/v1/zones", nil, nil, &out)
}

func (c *Client) Borders(ctx context.Context) ([]model.BoundaryLine, error) {
	var out []model.BoundaryLine
	return out, c.do(ctx, http.MethodGet, "/api/v1/borders", nil, nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
