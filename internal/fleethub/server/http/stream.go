package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/autopeer-io/fleethub/internal/fleethub/geofence"
	"github.com/autopeer-io/fleethub/pkg/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// closeFrame explains why the event channel ended. A subject that still has
// state was not closed, so the subscriber was dropped for falling behind and
// should reconnect and resync from GET /subjects/{id}.
func closeFrame(_ geofence.SubjectState, live bool) []byte {
	if live {
		return websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber fell behind")
	}
	return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subject closed")
}

// streamEvents upgrades to a websocket and pushes every geofence event of the
// subject as a JSON text frame until the client leaves or the subject is closed.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Subscribed before the handshake completes, so no event is missed by a
	// client that reports a position right after connecting.
	events, cancel := h.svc.ObserveGeofenceEvents(id)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "subject", id, "err", err.Error())
		return
	}
	defer conn.Close()

	// Drain control frames; a read error means the peer is gone.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	log.Debug("Event stream opened", "subject", id)
	for {
		select {
		case <-gone:
			log.Debug("Event stream closed by peer", "subject", id)
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, closeFrame(h.svc.SubjectState(id)))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
