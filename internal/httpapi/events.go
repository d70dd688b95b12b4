package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"llmed/internal/manager"
)

// EventSource hands out live subscriptions to manager events.
// *manager.EventHub implements it.
type EventSource interface {
	Subscribe() (<-chan manager.Event, func())
}

var eventSource EventSource

// SetEventSource installs the source streamed by GET /events. Without one the
// endpoint answers 503.
func SetEventSource(src EventSource) { eventSource = src }

const (
	eventWriteWait  = 10 * time.Second
	eventPingPeriod = 30 * time.Second
	eventPongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// events godoc
// @Summary      Lifecycle event stream
// @Description  Websocket; each message is one manager event as JSON.
// @Tags         lifecycle
// @Success      101
// @Failure      503  {object}  types.ErrorResponse
// @Router       /events [get]
func (a *api) events(w http.ResponseWriter, r *http.Request) {
	src := eventSource
	if src == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		zlog.Debug().Err(err).Msg("events upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := src.Subscribe()
	defer unsubscribe()
	eventStreams.Inc()
	defer eventStreams.Dec()

	// Clients only send control frames; the reader notices when they leave.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-serverBaseCtx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteWait))
			return
		}
	}
}
