package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hmdlag/internal/frame"
)

// Hub tests use Clients with a nil websocket.Conn; the hub guards Close
// against nil and never writes itself.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, sendBuf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, sendBuf),
		remoteAddr: name,
		logger:     hub.logger,
	}
}

func registerClient(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func runHub(t *testing.T, hub *Hub) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for hub to stop")
		}
	}
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	stop := runHub(t, hub)
	defer stop()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)

	msg := []byte(`{"type":"state_changed","data":{"render_lag":2}}`)

	// BroadcastBytes may drop when the queue is full; send directly.
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}
	if n := hub.Clients(); n != 2 {
		t.Fatalf("Clients() = %d, want 2", n)
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	stop := runHub(t, hub)
	defer stop()

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"state_changed","data":{"eye_mode":"swapped"}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled message, then expect the channel closed.
	select {
	case <-slow.send:
	default:
	}
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")

	waitUntil(t, 500*time.Millisecond, func() bool { return hub.Clients() == 1 }, "slow client still registered")
}

func TestRunBroadcaster_CoalescesBurst(t *testing.T) {
	hub := newTestHub(t, 8, 8)
	stop := runHub(t, hub)
	defer stop()

	c := newTestClient(hub, "c", 8)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan frame.State, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunBroadcaster(ctx, hub, src, "sess-1", hub.logger)
	}()

	for lag := 1; lag <= 5; lag++ {
		src <- frame.State{RenderLag: lag}
	}

	var env struct {
		Type    string      `json:"type"`
		Session string      `json:"session"`
		Data    frame.State `json:"data"`
	}
	select {
	case got := <-c.send:
		if err := json.Unmarshal(got, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for state_changed")
	}
	if env.Type != "state_changed" || env.Session != "sess-1" {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Data.RenderLag != 5 {
		t.Fatalf("coalesced RenderLag = %d, want latest 5", env.Data.RenderLag)
	}

	// The whole burst fit in one window.
	select {
	case extra := <-c.send:
		t.Fatalf("unexpected second message %q", extra)
	case <-time.After(3 * wsStateCoalesceWindow):
	}

	close(src)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcaster did not stop when source closed")
	}
}

func TestServer_SendsStateInitOnConnect(t *testing.T) {
	events := make(chan Event, 4)
	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), events, ServerConfig{Session: "sess-2"})
	stop := runHub(t, srv.Hub())
	defer stop()

	// Stand in for the frame loop.
	want := frame.State{Frame: 42, TrackingLag: 3, RenderLag: 1, IOD: 0.064, DeviceIOD: 0.064, CubeScale: 0.1}
	go func() {
		for ev := range events {
			if req, ok := ev.(RequestState); ok {
				req.Reply <- want
			}
		}
	}()
	defer close(events)

	mux := http.NewServeMux()
	srv.Register(mux, "/ws/state")
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env struct {
		Type    string      `json:"type"`
		Ts      *time.Time  `json:"ts"`
		Session string      `json:"session"`
		Data    frame.State `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	if env.Type != "state_init" || env.Session != "sess-2" || env.Ts == nil {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Data != want {
		t.Fatalf("state = %+v, want %+v", env.Data, want)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
