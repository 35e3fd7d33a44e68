package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"reflect"
	"testing"
	"time"

	"hmdlag/internal/input"
)

func key(code uint16, value int32) inputEvent {
	return inputEvent{Type: EV_KEY, Code: code, Value: value}
}

func abs(code uint16, value int32) inputEvent {
	return inputEvent{Type: EV_ABS, Code: code, Value: value}
}

var synReport = inputEvent{Type: EV_SYN, Code: SYN_REPORT}

func TestGamepad_ButtonsAndGrips(t *testing.T) {
	pad := newGamepad(defaultStickMax, defaultTriggerMax)

	unmapped := pad.applyReport([]inputEvent{
		key(BTN_X, evValuePress),
		key(KEY_R, evValuePress),
		key(BTN_TR, evValuePress),
	})
	if len(unmapped) != 0 {
		t.Fatalf("unmapped = %v, want none", unmapped)
	}

	s := pad.take()
	if !s.Pressed(input.ButtonX | input.ButtonRecenter) {
		t.Fatalf("Buttons = %v, want x|recenter", s.Buttons)
	}
	if s.HandTrigger[input.Right] != 1 {
		t.Fatalf("right grip = %v, want 1", s.HandTrigger[input.Right])
	}

	pad.applyReport([]inputEvent{key(BTN_X, evValueRelease), key(BTN_TR, evValueRelease)})
	s = pad.take()
	if s.Pressed(input.ButtonX) {
		t.Fatalf("x still pressed after release")
	}
	if !s.Pressed(input.ButtonRecenter) {
		t.Fatalf("recenter key released without a release event")
	}
	if s.HandTrigger[input.Right] != 0 {
		t.Fatalf("right grip = %v, want 0", s.HandTrigger[input.Right])
	}
}

func TestGamepad_AxesNormalized(t *testing.T) {
	pad := newGamepad(32767, 1023)

	pad.applyReport([]inputEvent{
		abs(ABS_RZ, 1023),
		abs(ABS_X, -32767),
		abs(ABS_RX, 40000),
	})

	s := pad.take()
	if s.IndexTrigger[input.Right] != 1 {
		t.Fatalf("right index = %v, want 1", s.IndexTrigger[input.Right])
	}
	if s.ThumbstickX[input.Left] != -1 {
		t.Fatalf("left stick = %v, want -1", s.ThumbstickX[input.Left])
	}
	if s.ThumbstickX[input.Right] != 1 {
		t.Fatalf("right stick = %v, want 1 (clamped past stick max)", s.ThumbstickX[input.Right])
	}
}

func TestGamepad_UnmappedEvents(t *testing.T) {
	pad := newGamepad(defaultStickMax, defaultTriggerMax)

	report := []inputEvent{key(0x2ff, evValuePress), abs(0x01, 100)}
	if got := pad.applyReport(report); !reflect.DeepEqual(got, report) {
		t.Fatalf("unmapped = %v, want %v", got, report)
	}
	if s := pad.take(); s != (input.Snapshot{}) {
		t.Fatalf("snapshot = %+v, want zero", s)
	}
}

func TestGamepad_TapBetweenTakes(t *testing.T) {
	pad := newGamepad(defaultStickMax, defaultTriggerMax)

	pad.applyReport([]inputEvent{key(BTN_A, evValuePress), abs(ABS_Z, 1023)})
	pad.applyReport([]inputEvent{key(BTN_A, evValueRelease), abs(ABS_Z, 0)})

	s := pad.take()
	if !s.Pressed(input.ButtonA) {
		t.Fatalf("tap released before take was lost")
	}
	if s.IndexTrigger[input.Left] != 1 {
		t.Fatalf("left index = %v, want 1", s.IndexTrigger[input.Left])
	}

	if s := pad.take(); s != (input.Snapshot{}) {
		t.Fatalf("second take = %+v, want released", s)
	}
}

func TestReportAssembler(t *testing.T) {
	var asm reportAssembler

	feed := func(evs ...inputEvent) [][]inputEvent {
		var out [][]inputEvent
		for _, ev := range evs {
			if r, ok := asm.add(ev); ok {
				out = append(out, r)
			}
		}
		return out
	}

	got := feed(key(BTN_A, evValuePress), abs(ABS_Z, 10), synReport, synReport, key(BTN_A, evValueRelease), synReport)
	want := [][]inputEvent{
		{key(BTN_A, evValuePress), abs(ABS_Z, 10)},
		{key(BTN_A, evValueRelease)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reports = %v, want %v", got, want)
	}

	// SYN_DROPPED discards the partial report and the next one.
	got = feed(
		key(BTN_B, evValuePress),
		inputEvent{Type: EV_SYN, Code: SYN_DROPPED},
		key(BTN_X, evValuePress), synReport,
		key(BTN_Y, evValuePress), synReport,
	)
	want = [][]inputEvent{{key(BTN_Y, evValuePress)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reports after drop = %v, want %v", got, want)
	}
}

func TestDecodeInputEvents_IgnoresPartialTail(t *testing.T) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, key(BTN_A, evValuePress)); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}
	buf.Write([]byte{1, 2, 3})

	evs, err := decodeInputEvents(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeInputEvents: %v", err)
	}
	if len(evs) != 1 || evs[0] != key(BTN_A, evValuePress) {
		t.Fatalf("events = %v", evs)
	}
}

func TestReadInputEvents_DeliversReports(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()

	stream := []inputEvent{
		{Sec: 1, Usec: 2, Type: EV_KEY, Code: BTN_A, Value: evValuePress},
		{Sec: 1, Usec: 3, Type: EV_ABS, Code: ABS_Z, Value: 512},
		{Sec: 1, Usec: 4, Type: EV_SYN, Code: SYN_REPORT},
		{Sec: 1, Usec: 5, Type: EV_KEY, Code: BTN_A, Value: evValueRelease},
	}
	var buf bytes.Buffer
	for _, ev := range stream {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatalf("binary.Write: %v", err)
		}
	}

	reports := make(chan []inputEvent, 4)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readInputEvents(r, reports, readErr, done)

	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case got := <-reports:
		if !reflect.DeepEqual(got, stream[:2]) {
			t.Fatalf("report = %v, want %v", got, stream[:2])
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for report")
	}

	// EOF ends the reader; the unterminated release is never delivered.
	select {
	case err := <-readErr:
		if err == nil {
			t.Fatalf("readErr = nil, want EOF error")
		}
	case <-time.After(time.Second):
		t.Fatalf("reader did not report EOF")
	}
	if len(reports) != 0 {
		t.Fatalf("unexpected extra report: %v", <-reports)
	}
}
