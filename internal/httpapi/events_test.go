package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"llmed/internal/manager"
)

func TestEventsUnavailableWithoutSource(t *testing.T) {
	SetEventSource(nil)
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestEventsStreamsHubEvents(t *testing.T) {
	hub := manager.NewEventHub(8)
	SetEventSource(hub)
	defer SetEventSource(nil)

	srv := httptest.NewServer(NewMux(&mockService{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(manager.Event{Name: "load_done", ModelID: "chat-1-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got manager.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != "load_done" || got.ModelID != "chat-1-1" || got.Time.IsZero() {
		t.Fatalf("event=%+v", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after client left")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
