package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/fleethub/internal/fleethub/command"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/service"
	"github.com/autopeer-io/fleethub/pkg/log"
)

type handler struct {
	svc *service.Service
}

// UnlockResponse is returned by POST /vehicles/{id}/unlock.
type UnlockResponse struct {
	Command model.Command       `json:"command"`
	Vehicle *model.VehicleState `json:"vehicle,omitempty"`
}

// PositionRequest is the body of POST /subjects/{id}/position.
type PositionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// PositionResponse carries the geofence event a position report caused, if any.
type PositionResponse struct {
	Event *model.GeofenceEvent `json:"event,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) listVehicles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(h.svc.ListVehicles()))
}

func (h *handler) getVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetVehicle(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) removeVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveVehicle(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// unlockVehicle issues an unlock. Without ?wait it answers 202 as soon as the
// command is queued; with ?wait=<duration> it blocks until the vehicle confirms.
func (h *handler) unlockVehicle(w http.ResponseWriter, r *http.Request) {
	var wait time.Duration
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid wait %q", raw)})
			return
		}
		wait = d
	}

	u, err := h.svc.RequestUnlock(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if wait == 0 {
		cmd, _ := u.Result()
		writeJSON(w, http.StatusAccepted, UnlockResponse{Command: cmd})
		return
	}

	v, err := h.svc.ConfirmUnlock(r.Context(), u, wait)
	if err != nil {
		writeError(w, err)
		return
	}
	cmd, _ := u.Result()
	writeJSON(w, http.StatusOK, UnlockResponse{Command: cmd, Vehicle: &v})
}

func (h *handler) getCommand(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	cmd, ok := h.svc.LookupCommand(token)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no command in flight with token %s", token)})
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (h *handler) cancelCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.svc.CancelCommand(mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (h *handler) getSubject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, ok := h.svc.SubjectState(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("subject %s is not tracked", id)})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) closeSubject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.svc.CloseSubject(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("subject %s is not tracked", id)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) reportPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"latitude\":<deg>,\"longitude\":<deg>}"})
		return
	}

	ev, fired, err := h.svc.ReportPosition(r.Context(), mux.Vars(r)["id"], *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(w, err)
		return
	}
	var resp PositionResponse
	if fired {
		resp.Event = &ev
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(h.svc.Zones()))
}

func (h *handler) listBorders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(h.svc.Borders()))
}

// orEmpty makes a nil slice encode as [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "err", err.Error())
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrVehicleNotFound), errors.Is(err, service.ErrCommandNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrVehicleUnavailable), errors.Is(err, service.ErrVehicleRestricted):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidPosition), errors.Is(err, command.ErrUnsupportedAction):
		return http.StatusBadRequest
	case errors.Is(err, command.ErrQueueFull), errors.Is(err, command.ErrDispatcherStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, command.ErrCommandTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, command.ErrCommandFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
