// Package frame is the per-frame core of the latency-emulating HMD renderer:
// it mutates the operator dials from input, decides whether the head pose is
// fresh or replayed, resolves both eye views and submits them.
package frame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"hmdlag/internal/input"
)

var (
	ErrNoCompositor = errors.New("frame: compositor is nil")
	ErrNoRenderer   = errors.New("frame: scene renderer is nil")
)

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Compositor Compositor
	Renderer   SceneRenderer

	// Observer is optional.
	Observer Observer

	// StickDeadzone defaults to DefaultStickDeadzone.
	StickDeadzone float64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Report describes one completed frame.
type Report struct {
	Frame       uint64
	Fresh       bool
	SampleFrame uint64
	Countdown   int
	TrackingLag int
	RenderLag   int
	Changes     Change
	Cursor      mgl64.Vec3
	Hand        mgl64.Vec3
	Views       [2]EyeView
	Drawn       [2]bool
}

// PoseAge is how many frames old the rendered head pose is.
func (r Report) PoseAge() uint64 { return r.Frame - r.SampleFrame }

// Orchestrator owns all per-frame state. It is driven by a single goroutine
// calling Step once per display refresh.
type Orchestrator struct {
	comp     Compositor
	renderer SceneRenderer
	observer Observer
	logger   *slog.Logger

	controls *Controls
	latency  *LatencyController
	modes    Modes
	scene    Scene
	cadence  Cadence
	resolver Resolver
	history  PoseHistory

	frame uint64
	last  Report
	quit  bool
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Compositor == nil {
		return nil, ErrNoCompositor
	}
	if cfg.Renderer == nil {
		return nil, ErrNoRenderer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		comp:     cfg.Compositor,
		renderer: cfg.Renderer,
		observer: cfg.Observer,
		logger:   logger,
		controls: NewControls(cfg.StickDeadzone),
		latency:  NewLatencyController(cfg.Compositor.DeviceIOD()),
		scene:    defaultScene(),
	}, nil
}

// Step runs one frame: input, cadence, tracking-lag history, resolve,
// render, submit. Input for the frame is fully applied before anything is
// resolved or rendered. Collaborator errors are returned wrapped; the
// core's own state stays consistent but the caller should treat them as fatal.
func (o *Orchestrator) Step(ctx context.Context, in input.Snapshot) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	n := o.frame

	changes := o.controls.Apply(in, o.latency, &o.modes, &o.scene)
	o.logChanges(changes)
	if changes.Has(RequestRecenter) {
		if err := o.comp.Recenter(); err != nil {
			return Report{}, fmt.Errorf("frame %d: recenter: %w", n, err)
		}
	}
	if changes.Has(RequestQuit) {
		o.quit = true
	}

	sample, fresh, err := o.cadence.Step(o.latency.RenderLag(), func() (Sample, error) {
		poses, t, err := o.comp.EyePoses(n, o.latency.EyeOffsets())
		if err != nil {
			return Sample{}, err
		}
		return Sample{Frame: n, SampleTime: t, Poses: poses, Projections: o.comp.EyeProjections()}, nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("frame %d: eye poses: %w", n, err)
	}

	hands, err := o.comp.HandPoses(n)
	if err != nil {
		return Report{}, fmt.Errorf("frame %d: hand poses: %w", n, err)
	}
	hand := hands[input.Right].Position
	o.history.Push(hand)

	res := o.resolver.Resolve(sample.Poses, sample.Projections, o.modes.Freeze, o.modes.Eye, o.modes.SuperRotation)
	cursor := o.history.Pop(o.latency.TrackingLag())

	for t := range res.Views {
		if !res.Drawn[t] {
			continue
		}
		r := EyeRender{Frame: n, View: res.Views[t], Scene: o.scene, Cursor: cursor}
		if err := o.renderer.RenderEye(ctx, r); err != nil {
			return Report{}, fmt.Errorf("frame %d: render %s eye: %w", n, Eye(t), err)
		}
	}

	sub := Submission{Frame: n, SampleTime: sample.SampleTime, Poses: res.SubmitPoses(), Drawn: res.Drawn}
	if err := o.comp.SubmitFrame(ctx, sub); err != nil {
		return Report{}, fmt.Errorf("frame %d: submit: %w", n, err)
	}

	rep := Report{
		Frame:       n,
		Fresh:       fresh,
		SampleFrame: sample.Frame,
		Countdown:   o.cadence.Countdown(),
		TrackingLag: o.latency.TrackingLag(),
		RenderLag:   o.latency.RenderLag(),
		Changes:     changes,
		Cursor:      cursor,
		Hand:        hand,
		Views:       res.Views,
		Drawn:       res.Drawn,
	}
	o.last = rep
	o.frame++
	if o.observer != nil {
		o.observer.ObserveFrame(rep)
	}
	return rep, nil
}

// QuitRequested reports whether the quit control has been pressed.
func (o *Orchestrator) QuitRequested() bool { return o.quit }

// Frame is the index the next Step will use.
func (o *Orchestrator) Frame() uint64 { return o.frame }

func (o *Orchestrator) logChanges(c Change) {
	if c == 0 {
		return
	}
	if c.Has(ChangeTrackingLag) {
		o.logger.Info("tracking lag changed", "frames", o.latency.TrackingLag())
	}
	if c.Has(ChangeRenderLag) {
		o.logger.Info("render lag changed", "frames", o.latency.RenderLag())
	}
	if c.Has(ChangeFreezeMode) {
		o.logger.Info("freeze mode changed", "mode", o.modes.Freeze)
	}
	if c.Has(ChangeEyeMode) {
		o.logger.Info("eye mode changed", "mode", o.modes.Eye)
	}
	if c.Has(ChangeSceneMode) {
		o.logger.Info("scene mode changed", "mode", o.scene.Mode)
	}
	if c.Has(ChangeSuperRotation) {
		o.logger.Info("super rotation toggled", "enabled", o.modes.SuperRotation)
	}
	if c.Has(ChangeIOD) {
		o.logger.Debug("iod changed", "iod_m", o.latency.IOD())
	}
	if c.Has(ChangeCubeScale) {
		o.logger.Debug("cube scale changed", "scale", o.scene.CubeScale)
	}
	if c.Has(RequestRecenter) {
		o.logger.Info("recentering tracking origin")
	}
	if c.Has(RequestQuit) {
		o.logger.Info("quit requested")
	}
}
