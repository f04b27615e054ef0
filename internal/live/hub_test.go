package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livemap/internal/alert"
	"livemap/internal/engine"
	"livemap/internal/lifecycle"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var ev map[string]any
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestHubBroadcastsEvents(t *testing.T) {
	h := NewHub(Options{})
	conn := dial(t, h)

	welcome := readEvent(t, conn)
	if welcome["type"] != string(EventWelcome) {
		t.Fatalf("first event = %v", welcome)
	}
	if h.Clients() != 1 {
		t.Fatalf("clients = %d", h.Clients())
	}

	h.Report(lifecycle.Report{})
	h.Notice(engine.Notice{ID: "n1", Message: "poll failed", At: time.Now()})
	if err := h.Notify(context.Background(), alert.Alert{EncounterID: "e1", Title: "Dragonite"}); err != nil {
		t.Fatal(err)
	}

	notice := readEvent(t, conn)
	if notice["type"] != string(EventNotice) {
		t.Errorf("empty report was broadcast or notice missing: %v", notice)
	}
	ev := readEvent(t, conn)
	data, _ := ev["data"].(map[string]any)
	if ev["type"] != string(EventAlert) || data["title"] != "Dragonite" {
		t.Errorf("alert event = %v", ev)
	}
}

func TestHubInboundMessages(t *testing.T) {
	got := make(chan Inbound, 1)
	h := NewHub(Options{OnMessage: func(_ string, msg Inbound) { got <- msg }})
	conn := dial(t, h)
	readEvent(t, conn)

	if err := conn.WriteJSON(Inbound{Type: "dismiss", ID: "n1"}); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-got:
		if msg.Type != "dismiss" || msg.ID != "n1" {
			t.Errorf("inbound = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}
}

func TestNotifyCancelled(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Notify(ctx, alert.Alert{}); err == nil {
		t.Error("Notify() on cancelled context succeeded")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://evil.example")
	if check(r) {
		t.Error("foreign origin accepted")
	}
	r.Header.Set("Origin", "http://localhost:3000")
	if !check(r) {
		t.Error("configured origin rejected")
	}
}

func TestSendToDroppedClient(t *testing.T) {
	h := NewHub(Options{})
	c := &Client{ID: "c1", hub: h, send: make(chan []byte, 1)}
	h.register(c)
	h.Close()

	h.sendTo(c, Event{Type: EventWelcome, At: time.Now()})
	if _, open := <-c.send; open {
		t.Error("event queued for a dropped client")
	}

	c.send = make(chan []byte, 1)
	h.register(c)
	h.sendTo(c, Event{Type: EventWelcome, At: time.Now()})
	if len(c.send) != 1 {
		t.Error("welcome not queued for a registered client")
	}
}
