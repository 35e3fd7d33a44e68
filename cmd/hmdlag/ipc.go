package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
)

// The control socket takes one JSON event per line and answers each line
// with one IPCResponse:
//
//	-> {"type":"button","data":{"name":"a","pressed":true}}
//	<- {"status":"ok","event":"button"}
//	-> {"type":"axis","data":{"name":"left_stick_y","value":1}}
//	<- {"status":"error","code":"unknown_axis","name":"left_stick_y","error":"unknown axis \"left_stick_y\""}
//
// A bad line does not close the connection. A line over maxIPCLine does.

const (
	maxIPCLine = 4096

	codeQueueFull   = "queue_full"
	codeLineTooLong = "line_too_long"
)

// IPCResponse answers one line on the control socket.
type IPCResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
	Code   string `json:"code,omitempty"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

func okResponse(ev Event) IPCResponse {
	return IPCResponse{Status: "ok", Event: eventType(ev)}
}

func errorResponse(err error) IPCResponse {
	resp := IPCResponse{Status: "error", Error: err.Error()}
	var evErr *EventError
	if errors.As(err, &evErr) {
		resp.Code = evErr.Code
		resp.Name = evErr.Name
	}
	return resp
}

// ipcServer feeds injected controller input from the control socket into
// the frame loop's event queue. It never blocks on a full queue.
type ipcServer struct {
	events chan<- Event
	logger *slog.Logger
}

// runIPCServer serves socketPath until ctx is canceled. A stale socket file
// from a previous run is replaced.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", socketPath, err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)
	defer ln.Close()

	if err := os.Chmod(socketPath, 0o666); err != nil {
		return fmt.Errorf("chmod %s: %w", socketPath, err)
	}

	srv := &ipcServer{events: events, logger: logger.With("socket", socketPath)}
	srv.logger.Info("control socket listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				srv.logger.Debug("control socket closed")
				return nil
			}
			srv.logger.Warn("control socket accept failed", "error", err)
			continue
		}
		go srv.serveConn(conn)
	}
}

func (s *ipcServer) serveConn(conn net.Conn) {
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 512), maxIPCLine)
	enc := json.NewEncoder(conn)

	lines := 0
	for sc.Scan() {
		lines++
		resp := s.handleLine(sc.Bytes())
		if err := enc.Encode(resp); err != nil {
			s.logger.Debug("control reply failed", "error", err)
			return
		}
	}

	if errors.Is(sc.Err(), bufio.ErrTooLong) {
		_ = enc.Encode(IPCResponse{
			Status: "error",
			Code:   codeLineTooLong,
			Error:  fmt.Sprintf("line exceeds %d bytes", maxIPCLine),
		})
	}
	s.logger.Debug("control connection closed", "lines", lines)
}

// handleLine turns one line into an event on the queue and reports the
// outcome.
func (s *ipcServer) handleLine(line []byte) IPCResponse {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		resp := errorResponse(err)
		s.logger.Debug("rejected control line", "code", resp.Code, "name", resp.Name, "error", err)
		return resp
	}

	select {
	case s.events <- ev:
		return okResponse(ev)
	default:
		s.logger.Warn("event queue full, dropping control event", "event", eventType(ev))
		return IPCResponse{Status: "error", Code: codeQueueFull, Event: eventType(ev), Error: "event queue full"}
	}
}
