package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// hmdctl - Command-line IPC Client
// ============================================================================
// Injects controller input into a running hmdlag daemon.
//
// Usage:
//   hmdctl press a
//   hmdctl tap rthumb
//   hmdctl axis right_hand 1
//   hmdctl render-lag up
//   hmdctl recenter
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/hmdlag.sock)
//   -hold MS        How long tap holds the control (default: 50)
// ============================================================================

// Event types (duplicated from the daemon for a standalone binary)
type Event interface{}

type ButtonEvent struct {
	Name    string `json:"name"`
	Pressed bool   `json:"pressed"`
}

type AxisEvent struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type RecenterEvent struct{}

type QuitEvent struct{}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response. Code and Name identify the
// rejected control when Status is "error".
type IPCResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
	Code   string `json:"code,omitempty"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r IPCResponse) err() error {
	if r.Status != "error" {
		return nil
	}
	if r.Name != "" {
		return fmt.Errorf("daemon rejected %q (%s): %s", r.Name, r.Code, r.Error)
	}
	if r.Code != "" {
		return fmt.Errorf("daemon error (%s): %s", r.Code, r.Error)
	}
	return fmt.Errorf("daemon error: %s", r.Error)
}

// Lag dials step on a trigger press edge; these are the triggers for each.
var lagAxes = map[string][2]string{
	"render-lag":   {"left_hand", "right_hand"},
	"tracking-lag": {"left_index", "right_index"},
}

func main() {
	socketPath := "/tmp/hmdlag.sock"
	hold := 50 * time.Millisecond

	args := os.Args[1:]
	for len(args) > 0 && len(args[0]) > 1 && args[0][0] == '-' {
		switch args[0] {
		case "-socket", "--socket":
			if len(args) < 2 {
				fatalf("-socket requires an argument")
			}
			socketPath = args[1]
			args = args[2:]
		case "-hold", "--hold":
			if len(args) < 2 {
				fatalf("-hold requires an argument")
			}
			ms, err := strconv.Atoi(args[1])
			if err != nil || ms < 0 {
				fatalf("invalid -hold value: %s", args[1])
			}
			hold = time.Duration(ms) * time.Millisecond
			args = args[2:]
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		default:
			fatalf("unknown option: %s", args[0])
		}
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Each element is sent in order; tap-style commands hold between sends.
	var seq []Event

	switch args[0] {
	case "press", "release":
		if len(args) < 2 {
			fatalf("%s requires a button name", args[0])
		}
		seq = []Event{ButtonEvent{Name: args[1], Pressed: args[0] == "press"}}

	case "tap":
		if len(args) < 2 {
			fatalf("tap requires a button name")
		}
		seq = []Event{
			ButtonEvent{Name: args[1], Pressed: true},
			ButtonEvent{Name: args[1], Pressed: false},
		}

	case "axis":
		if len(args) < 3 {
			fatalf("axis requires a name and a value")
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fatalf("invalid axis value: %v", err)
		}
		seq = []Event{AxisEvent{Name: args[1], Value: v}}

	case "render-lag", "tracking-lag":
		if len(args) < 2 || (args[1] != "up" && args[1] != "down") {
			fatalf("%s requires up or down", args[0])
		}
		axis := lagAxes[args[0]][0]
		if args[1] == "up" {
			axis = lagAxes[args[0]][1]
		}
		seq = []Event{AxisEvent{Name: axis, Value: 1}, AxisEvent{Name: axis, Value: 0}}

	case "recenter":
		seq = []Event{RecenterEvent{}}

	case "quit":
		seq = []Event{QuitEvent{}}

	case "help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	for i, ev := range seq {
		if i > 0 {
			time.Sleep(hold)
		}
		if err := sendEvent(socketPath, ev); err != nil {
			fatalf("%v", err)
		}
	}

	fmt.Println("ok")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func sendEvent(socketPath string, ev Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return response.err()
}

func marshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
	case ButtonEvent:
		env.Type = "button"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonEvent: %w", err)
		}
		env.Data = data

	case AxisEvent:
		env.Type = "axis"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal AxisEvent: %w", err)
		}
		env.Data = data

	case RecenterEvent:
		env.Type = "recenter"

	case QuitEvent:
		env.Type = "quit"

	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `hmdctl - Inject controller input into the hmdlag daemon via IPC

Usage:
  hmdctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/hmdlag.sock)
  -hold MS        How long tap-style commands hold the control (default: 50)

Commands:
  press <button>              Hold a button (a b x y lthumb rthumb recenter quit)
  release <button>            Release a held button
  tap <button>                Press, hold, release
  axis <name> <value>         Set an analog value until changed
                              (left_index right_index left_hand right_hand
                               left_stick_x right_stick_x)
  render-lag up|down          Step the render lag by one frame
  tracking-lag up|down        Step the tracking lag by one frame
  recenter                    Recenter the tracking origin
  quit                        Stop the daemon
  help, -h, --help            Show this help message

Examples:
  hmdctl tap a
  hmdctl render-lag up
  hmdctl axis right_stick_x 0.8
  hmdctl -socket /run/hmdlag.sock recenter
`)
}
