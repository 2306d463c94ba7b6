package httphandler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = eventPongWait * 9 / 10
	eventBuffer     = 32
)

// eventUpgrader keeps the default same-origin check: the stream is served to
// UIs on the listen address only.
var eventUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionEvents upgrades to a WebSocket and streams session events. The first
// message is a state event with the current snapshot. Client messages are
// read only to track pongs and detect close.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.session.Subscribe(eventBuffer)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()

	snap := h.session.CurrentState()
	initial := model.SessionEvent{Type: model.EventState, Snapshot: snap, At: snap.UpdatedAt}
	if err := writeEvent(conn, initial); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				h.logger.Debug("event stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev model.SessionEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(toEventResponse(ev))
}
