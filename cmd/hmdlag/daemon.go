package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hmdlag/internal/frame"
	"hmdlag/internal/input"
)

// ============================================================================
// Frame Loop
// ============================================================================
//
// The frame loop is the only goroutine that touches the Orchestrator:
//   - a ticker at the display rate drives Orchestrator.Step
//   - IPC events are folded into an injected Snapshot between frames; a
//     press released before the next tick is still seen by one frame
//   - RequestState events are answered from the loop
//   - a dial change is published to states (latest wins)
//
// ============================================================================

// errQuitRequested is returned by runFrameLoop when the operator asked to quit.
var errQuitRequested = errors.New("quit requested")

// injected is controller state set over IPC. Held buttons and axes persist
// until changed. take also reports anything pressed since the previous take,
// so a press and release between two ticks still reaches one frame. Recenter
// and quit only ever live in seen.
type injected struct {
	live input.Snapshot
	seen input.Snapshot
}

func (in *injected) apply(ev Event) {
	switch e := ev.(type) {
	case ButtonEvent:
		b, err := input.ParseButton(e.Name)
		if err != nil {
			return
		}
		if e.Pressed {
			in.live.Buttons |= b
		} else {
			in.live.Buttons &^= b
		}
	case AxisEvent:
		_ = in.live.SetAxis(e.Name, e.Value)
	case RecenterEvent:
		in.seen.Buttons |= input.ButtonRecenter
		return
	case QuitEvent:
		in.seen.Buttons |= input.ButtonQuit
		return
	default:
		return
	}
	in.seen = input.Merge(in.seen, in.live)
}

// take returns the snapshot for this frame and starts a new seen window.
func (in *injected) take() input.Snapshot {
	s := input.Merge(in.live, in.seen)
	in.seen = input.Snapshot{}
	return s
}

type frameLoopConfig struct {
	FrameRate int

	// Pad is optional; nil means IPC input only.
	Pad *gamepad

	// States receives the State after every frame whose dials changed.
	// Optional.
	States chan frame.State
}

// runFrameLoop steps orch once per tick until ctx is canceled, a collaborator
// fails or quit is requested.
func runFrameLoop(ctx context.Context, orch *frame.Orchestrator, events <-chan Event, cfg frameLoopConfig, logger *slog.Logger) error {
	if cfg.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be > 0, got %d", cfg.FrameRate)
	}
	ticker := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer ticker.Stop()

	var ipc injected
	lastDials := orch.State().Dials()

	logger.Info("frame loop starting", "frame_rate", cfg.FrameRate)

	for {
		select {
		case <-ctx.Done():
			logger.Info("frame loop stopping (context canceled)", "frames", orch.Frame())
			return nil

		case ev, ok := <-events:
			if !ok {
				logger.Info("frame loop stopping (events channel closed)")
				return nil
			}
			if req, isReq := ev.(RequestState); isReq {
				select {
				case req.Reply <- orch.State():
				default:
					logger.Debug("state request dropped (reply channel full)", "frame", orch.Frame())
				}
				continue
			}
			ipc.apply(ev)

		case <-ticker.C:
			in := ipc.take()
			if cfg.Pad != nil {
				in = input.Merge(cfg.Pad.take(), in)
			}

			if _, err := orch.Step(ctx, in); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			st := orch.State()
			if d := st.Dials(); d != lastDials {
				lastDials = d
				publishState(cfg.States, st)
			}

			if orch.QuitRequested() {
				logger.Info("quit requested", "frame", orch.Frame())
				return errQuitRequested
			}
		}
	}
}

// publishState replaces any unconsumed State in ch with st.
func publishState(ch chan frame.State, st frame.State) {
	if ch == nil {
		return
	}
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
