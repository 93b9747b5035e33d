package websocket

import (
	"log/slog"
	"testing"
)

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}

	// Double unregister must not panic (channel already closed)
	hub.Unregister(c)
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast(Message{Type: "check_in", UserID: "u1", Extra: map[string]any{"streak": 3}})

	select {
	case data := <-c.send:
		if len(data) == 0 {
			t.Error("expected non-empty broadcast payload")
		}
	default:
		t.Error("expected message in client buffer")
	}
}

func TestHubBroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast(Message{Type: "check_in"})
	hub.Broadcast(Message{Type: "check_in"}) // buffer full — must not block
}
