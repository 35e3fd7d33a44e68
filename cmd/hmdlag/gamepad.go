package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"hmdlag/internal/input"
)

// inputEvent mirrors the kernel's struct input_event on 64-bit Linux:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvents decodes every whole event in buf. A partial tail is
// ignored; evdev never returns one.
func decodeInputEvents(buf []byte) ([]inputEvent, error) {
	evs := make([]inputEvent, len(buf)/inputEventSize)
	if len(evs) == 0 {
		return nil, nil
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, evs); err != nil {
		return nil, err
	}
	return evs, nil
}

// reportAssembler groups one device's events into SYN_REPORT-terminated
// reports. After SYN_DROPPED everything up to and including the next
// SYN_REPORT is discarded.
type reportAssembler struct {
	pending  []inputEvent
	dropping bool
}

// add returns the finished report when ev closes one.
func (a *reportAssembler) add(ev inputEvent) ([]inputEvent, bool) {
	if ev.Type != EV_SYN {
		if !a.dropping {
			a.pending = append(a.pending, ev)
		}
		return nil, false
	}

	switch ev.Code {
	case SYN_REPORT:
		if a.dropping {
			a.dropping = false
			a.pending = nil
			return nil, false
		}
		if len(a.pending) == 0 {
			return nil, false
		}
		report := a.pending
		a.pending = nil
		return report, true
	case SYN_DROPPED:
		a.dropping = true
		a.pending = nil
	}
	return nil, false
}

func sendReport(reports chan<- []inputEvent, report []inputEvent, done <-chan struct{}) bool {
	select {
	case reports <- report:
		return true
	case <-done:
		return false
	}
}

// readInputEvents is the blocking per-device reader. It exits on a read
// error (including the file being closed) or once done is closed.
func readInputEvents(f *os.File, reports chan<- []inputEvent, readErr chan<- error, done <-chan struct{}) {
	buf := make([]byte, inputEventSize)
	var asm reportAssembler

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
			return
		}
		evs, err := decodeInputEvents(buf)
		if err != nil {
			continue
		}
		for _, ev := range evs {
			if report, ok := asm.add(ev); ok {
				if !sendReport(reports, report, done) {
					return
				}
			}
		}
	}
}

var padButtons = map[uint16]input.Button{
	BTN_A:      input.ButtonA,
	BTN_B:      input.ButtonB,
	BTN_X:      input.ButtonX,
	BTN_Y:      input.ButtonY,
	BTN_THUMBL: input.ButtonLThumb,
	BTN_THUMBR: input.ButtonRThumb,
	BTN_SELECT: input.ButtonRecenter,
	KEY_R:      input.ButtonRecenter,
	BTN_MODE:   input.ButtonQuit,
	KEY_ESC:    input.ButtonQuit,
}

// gamepad folds evdev reports into the live controller state. The frame loop
// calls take once per frame; anything pressed since the previous take is
// included even if it has been released again.
type gamepad struct {
	stickMax   float64
	triggerMax float64

	mu   sync.Mutex
	live input.Snapshot
	seen input.Snapshot
}

func newGamepad(stickMax, triggerMax int32) *gamepad {
	return &gamepad{stickMax: float64(stickMax), triggerMax: float64(triggerMax)}
}

// applyReport applies one report as a unit and returns the events that did
// not map to a control.
func (g *gamepad) applyReport(report []inputEvent) (unmapped []inputEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, ev := range report {
		if !g.applyLocked(ev) {
			unmapped = append(unmapped, ev)
		}
	}
	g.seen = input.Merge(g.seen, g.live)
	return unmapped
}

func (g *gamepad) applyLocked(ev inputEvent) bool {
	switch ev.Type {
	case EV_KEY:
		held := ev.Value == evValuePress || ev.Value == evValueRepeat
		switch ev.Code {
		case BTN_TL:
			g.live.HandTrigger[input.Left] = boolAxis(held)
			return true
		case BTN_TR:
			g.live.HandTrigger[input.Right] = boolAxis(held)
			return true
		}
		b, ok := padButtons[ev.Code]
		if !ok {
			return false
		}
		if held {
			g.live.Buttons |= b
		} else {
			g.live.Buttons &^= b
		}
		return true

	case EV_ABS:
		v := float64(ev.Value)
		var err error
		switch ev.Code {
		case ABS_Z:
			err = g.live.SetAxis(input.AxisLeftIndex, v/g.triggerMax)
		case ABS_RZ:
			err = g.live.SetAxis(input.AxisRightIndex, v/g.triggerMax)
		case ABS_X:
			err = g.live.SetAxis(input.AxisLeftStickX, v/g.stickMax)
		case ABS_RX:
			err = g.live.SetAxis(input.AxisRightStickX, v/g.stickMax)
		default:
			return false
		}
		return err == nil
	}
	return false
}

// take returns the snapshot for one frame: the live state merged with
// everything seen since the previous take.
func (g *gamepad) take() input.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := input.Merge(g.live, g.seen)
	g.seen = input.Snapshot{}
	return s
}

func boolAxis(held bool) float64 {
	if held {
		return 1
	}
	return 0
}

// runGamepad opens the devices, starts the platform reader and applies its
// reports to pad until ctx is canceled or a device fails.
func runGamepad(ctx context.Context, devices []string, pad *gamepad, logger *slog.Logger) error {
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", dev, err)
		}
		files = append(files, f)
	}

	reports := make(chan []inputEvent, 16)
	readErr := make(chan error, len(files)+1)
	done := make(chan struct{})
	defer close(done)

	startInputReaders(files, reports, readErr, done)
	logger.Info("gamepad input started", "devices", devices)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("input reader stopped: %w", err)
		case report := <-reports:
			for _, ev := range pad.applyReport(report) {
				logger.Debug("unmapped input event", "type", ev.Type, "code", ev.Code, "value", ev.Value)
			}
		}
	}
}
