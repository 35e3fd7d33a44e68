package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"hmdlag/internal/frame"
	"hmdlag/internal/input"
	"hmdlag/internal/simhmd"
	"hmdlag/internal/trace"
)

// cadence-plot runs the frame core against the simulated headset without a
// clock, sweeping the lag dials, and charts how stale each frame's pose was.

func main() {
	var (
		renderLags   = flag.String("render-lags", "0,1,3,6", "Comma-separated render lag per segment")
		trackingLags = flag.String("tracking-lags", "0,4,8,12", "Comma-separated tracking lag per segment")
		segment      = flag.Int("segment", 90, "Frames per segment")
		frameRate    = flag.Float64("frame-rate", 90, "Simulated refresh rate in Hz")
		out          = flag.String("out", "cadence.png", "Output PNG path")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rl, err := parseLags(*renderLags)
	if err != nil {
		fatalf("-render-lags: %v", err)
	}
	tl, err := parseLags(*trackingLags)
	if err != nil {
		fatalf("-tracking-lags: %v", err)
	}
	if len(rl) != len(tl) {
		fatalf("-render-lags and -tracking-lags need the same number of segments")
	}
	if *segment <= 0 {
		fatalf("-segment must be > 0")
	}

	segs := make([]lagSegment, len(rl))
	for i := range rl {
		segs[i] = lagSegment{RenderLag: rl[i], TrackingLag: tl[i], Frames: *segment}
	}

	runID := uuid.NewString()
	simCfg := simhmd.DefaultConfig()
	simCfg.FrameRate = *frameRate

	recs, err := sweep(context.Background(), simCfg, segs, logger)
	if err != nil {
		fatalf("%v", err)
	}

	sum, err := trace.Summarize(recs)
	if err != nil {
		fatalf("%v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		fatalf("create output: %v", err)
	}
	if err := trace.WritePlot(f, recs, "cadence sweep "+runID[:8]); err != nil {
		_ = f.Close()
		fatalf("plot: %v", err)
	}
	if err := f.Close(); err != nil {
		fatalf("close output: %v", err)
	}

	fmt.Printf("run %s\n", runID)
	fmt.Printf("%s\n", sum)
	fmt.Printf("wrote %s\n", *out)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func parseLags(s string) ([]int, error) {
	var lags []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("lag %d is negative", n)
		}
		lags = append(lags, n)
	}
	return lags, nil
}

type lagSegment struct {
	RenderLag   int
	TrackingLag int
	Frames      int
}

// sweep steps a fresh orchestrator through segs and returns every frame's
// record. The dials are moved by synthesized trigger presses, so segments
// start with a short ramp while the driver catches up.
func sweep(ctx context.Context, simCfg simhmd.Config, segs []lagSegment, logger *slog.Logger) ([]trace.Record, error) {
	total := 0
	for _, s := range segs {
		total += s.Frames
	}
	if total == 0 {
		return nil, trace.ErrEmpty
	}

	sim := simhmd.New(simCfg)
	defer sim.Close()

	rec := trace.NewRecorder(total)
	orch, err := frame.New(frame.Config{
		Compositor: sim,
		Renderer:   simhmd.NewRenderer(0),
		Observer:   rec,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	var d driver
	for _, s := range segs {
		d.renderLag, d.trackingLag = s.RenderLag, s.TrackingLag
		for i := 0; i < s.Frames; i++ {
			if _, err := orch.Step(ctx, d.next(orch.State())); err != nil {
				return nil, err
			}
		}
	}
	return rec.Records(), nil
}

// driver presses the lag triggers until the dials reach their targets,
// releasing on alternate frames so each press is a separate edge.
type driver struct {
	renderLag, trackingLag int
	pressed                bool
}

func (d *driver) next(st frame.State) input.Snapshot {
	var s input.Snapshot
	if d.pressed {
		d.pressed = false
		return s
	}
	switch {
	case st.RenderLag < d.renderLag:
		s.HandTrigger[input.Right] = 1
	case st.RenderLag > d.renderLag:
		s.HandTrigger[input.Left] = 1
	}
	switch {
	case st.TrackingLag < d.trackingLag:
		s.IndexTrigger[input.Right] = 1
	case st.TrackingLag > d.trackingLag:
		s.IndexTrigger[input.Left] = 1
	}
	d.pressed = s != input.Snapshot{}
	return s
}
