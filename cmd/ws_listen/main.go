package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"hmdlag/internal/frame"
)

type envelope struct {
	Type    string          `json:"type"`
	Ts      *time.Time      `json:"ts,omitempty"`
	Session string          `json:"session,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3011/ws/state", "hmdlag state websocket URL")
		raw   = flag.Bool("raw", false, "Print messages as received instead of dial changes")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// The daemon pings every 20s; allow a few to go missing.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last *frame.State
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}
			last = handleTextMessage(message, last)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints the dials that differ from last and returns the
// new state.
func handleTextMessage(message []byte, last *frame.State) *frame.State {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", message)
		return last
	}

	var st frame.State
	if err := json.Unmarshal(env.Data, &st); err != nil {
		fmt.Printf("[%s] undecodable data: %s\n", env.Type, env.Data)
		return last
	}

	if env.Type == "state_init" || last == nil {
		fmt.Printf("[INIT] session=%s frame=%d\n", env.Session, st.Frame)
		for _, line := range describe(st) {
			fmt.Printf("  %s\n", line)
		}
		return &st
	}

	prev := describe(*last)
	for i, line := range describe(st) {
		if line != prev[i] {
			fmt.Printf("[CHANGED] frame=%d %s\n", st.Frame, line)
		}
	}
	return &st
}

func describe(s frame.State) []string {
	return []string{
		fmt.Sprintf("tracking_lag=%d", s.TrackingLag),
		fmt.Sprintf("render_lag=%d", s.RenderLag),
		fmt.Sprintf("iod=%.3fm (device %.3fm)", s.IOD, s.DeviceIOD),
		fmt.Sprintf("freeze=%s", s.FreezeMode),
		fmt.Sprintf("eyes=%s", s.EyeMode),
		fmt.Sprintf("scene=%s", s.SceneMode),
		fmt.Sprintf("super_rotation=%t", s.SuperRotation),
		fmt.Sprintf("cube_scale=%.3f", s.CubeScale),
	}
}
