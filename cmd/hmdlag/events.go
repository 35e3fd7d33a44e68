package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"hmdlag/internal/frame"
	"hmdlag/internal/input"
)

// Event is a marker interface for everything the frame loop consumes besides
// the frame tick: injected controller input from IPC and internal requests.
type Event interface {
	eventMarker()
}

// ButtonEvent holds or releases a controller button.
type ButtonEvent struct {
	Name    string `json:"name"`
	Pressed bool   `json:"pressed"`
}

func (ButtonEvent) eventMarker() {}

// AxisEvent sets an analog value; it stays until the next AxisEvent for the
// same axis.
type AxisEvent struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func (AxisEvent) eventMarker() {}

// RecenterEvent and QuitEvent press and release their button within one frame.
type RecenterEvent struct{}

type QuitEvent struct{}

func (RecenterEvent) eventMarker() {}
func (QuitEvent) eventMarker()     {}

// RequestState asks the frame loop for a State snapshot. Not serializable.
type RequestState struct {
	Reply chan<- frame.State
}

func (RequestState) eventMarker() {}

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Codes carried by EventError and echoed in IPCResponse.Code.
const (
	codeBadJSON       = "bad_json"
	codeUnknownType   = "unknown_type"
	codeBadPayload    = "bad_payload"
	codeUnknownButton = "unknown_button"
	codeUnknownAxis   = "unknown_axis"
)

// EventError reports why a line could not become an Event. Name is the
// offending event type, button or axis when there is one.
type EventError struct {
	Code string
	Name string
	Err  error
}

func (e *EventError) Error() string { return e.Err.Error() }
func (e *EventError) Unwrap() error { return e.Err }

// UnmarshalEvent decodes and validates an IPC line. Failures are *EventError.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &EventError{Code: codeBadJSON, Err: fmt.Errorf("unmarshal envelope: %w", err)}
	}

	switch env.Type {
	case "button":
		var e ButtonEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, &EventError{Code: codeBadPayload, Name: env.Type, Err: fmt.Errorf("unmarshal ButtonEvent: %w", err)}
		}
		if _, err := input.ParseButton(e.Name); err != nil {
			return nil, &EventError{Code: codeUnknownButton, Name: e.Name, Err: err}
		}
		return e, nil

	case "axis":
		var e AxisEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, &EventError{Code: codeBadPayload, Name: env.Type, Err: fmt.Errorf("unmarshal AxisEvent: %w", err)}
		}
		var scratch input.Snapshot
		if err := scratch.SetAxis(e.Name, e.Value); err != nil {
			return nil, &EventError{Code: codeUnknownAxis, Name: e.Name, Err: err}
		}
		return e, nil

	case "recenter":
		return RecenterEvent{}, nil

	case "quit":
		return QuitEvent{}, nil

	default:
		return nil, &EventError{Code: codeUnknownType, Name: env.Type, Err: fmt.Errorf("unknown event type: %q", env.Type)}
	}
}

// eventType is the envelope discriminator for ev, or "" for internal events.
func eventType(ev Event) string {
	switch ev.(type) {
	case ButtonEvent:
		return "button"
	case AxisEvent:
		return "axis"
	case RecenterEvent:
		return "recenter"
	case QuitEvent:
		return "quit"
	}
	return ""
}

var errNotSerializable = errors.New("event is not serializable")

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	env := EventEnvelope{Type: eventType(e)}
	if env.Type == "" {
		return nil, fmt.Errorf("%T: %w", e, errNotSerializable)
	}

	switch e := e.(type) {
	case ButtonEvent, AxisEvent:
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s event: %w", env.Type, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}
