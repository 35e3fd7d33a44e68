package frame

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"hmdlag/internal/input"
	"hmdlag/internal/pose"
)

// mockCompositor records every call the orchestrator makes.
type mockCompositor struct {
	calls      []string
	eyeFrames  []uint64
	offsets    [][2]mgl64.Vec3
	subs       []Submission
	recentered int

	eyeErr    error
	handErr   error
	submitErr error
}

func (m *mockCompositor) DeviceIOD() float64 { return 0.064 }

func (m *mockCompositor) EyePoses(frame uint64, hmdToEye [2]mgl64.Vec3) ([2]pose.Pose, float64, error) {
	m.calls = append(m.calls, "eyes")
	if m.eyeErr != nil {
		return [2]pose.Pose{}, 0, m.eyeErr
	}
	m.eyeFrames = append(m.eyeFrames, frame)
	m.offsets = append(m.offsets, hmdToEye)
	return eyePair(int(frame)), float64(frame) / 90, nil
}

func (m *mockCompositor) EyeProjections() [2]mgl64.Mat4 { return projPair() }

func (m *mockCompositor) HandPoses(frame uint64) ([2]pose.Pose, error) {
	m.calls = append(m.calls, "hands")
	if m.handErr != nil {
		return [2]pose.Pose{}, m.handErr
	}
	p := pose.Identity().WithPosition(mgl64.Vec3{float64(frame), 0, 0})
	return [2]pose.Pose{pose.Identity(), p}, nil
}

func (m *mockCompositor) SubmitFrame(_ context.Context, s Submission) error {
	m.calls = append(m.calls, "submit")
	if m.submitErr != nil {
		return m.submitErr
	}
	m.subs = append(m.subs, s)
	return nil
}

func (m *mockCompositor) Recenter() error {
	m.calls = append(m.calls, "recenter")
	m.recentered++
	return nil
}

type recordingRenderer struct {
	renders []EyeRender
	err     error
}

func (r *recordingRenderer) RenderEye(_ context.Context, er EyeRender) error {
	if r.err != nil {
		return r.err
	}
	r.renders = append(r.renders, er)
	return nil
}

type reportLog struct{ reports []Report }

func (l *reportLog) ObserveFrame(r Report) { l.reports = append(l.reports, r) }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *mockCompositor, *recordingRenderer) {
	t.Helper()
	comp := &mockCompositor{}
	rend := &recordingRenderer{}
	o, err := New(Config{
		Compositor: comp,
		Renderer:   rend,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, comp, rend
}

func step(t *testing.T, o *Orchestrator, s input.Snapshot) Report {
	t.Helper()
	rep, err := o.Step(context.Background(), s)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return rep
}

func pressRenderLagUp(t *testing.T, o *Orchestrator, n int) {
	t.Helper()
	var s input.Snapshot
	for i := 0; i < n; i++ {
		s.HandTrigger[input.Right] = 1
		step(t, o, s)
		s.HandTrigger[input.Right] = 0
		step(t, o, s)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Renderer: &recordingRenderer{}}); !errors.Is(err, ErrNoCompositor) {
		t.Fatalf("err = %v, want ErrNoCompositor", err)
	}
	if _, err := New(Config{Compositor: &mockCompositor{}}); !errors.Is(err, ErrNoRenderer) {
		t.Fatalf("err = %v, want ErrNoRenderer", err)
	}
}

func TestOrchestrator_EyePosesOnlyOnFreshFrames(t *testing.T) {
	o, comp, _ := newTestOrchestrator(t)
	pressRenderLagUp(t, o, 3)

	// Align to the next fresh frame.
	for o.cadence.Countdown() != 0 {
		step(t, o, input.Snapshot{})
	}

	comp.eyeFrames = nil
	var pattern strings.Builder
	for i := 0; i < 8; i++ {
		rep := step(t, o, input.Snapshot{})
		if rep.Fresh {
			pattern.WriteString("F")
		} else {
			pattern.WriteString("S")
		}
	}
	if diff := cmp.Diff("FSSSFSSS", pattern.String()); diff != "" {
		t.Fatalf("cadence (-want +got):\n%s", diff)
	}
	if len(comp.eyeFrames) != 2 {
		t.Fatalf("EyePoses called %d times over 8 frames at render lag 3", len(comp.eyeFrames))
	}
}

func TestOrchestrator_StaleFramesReplaySample(t *testing.T) {
	o, comp, _ := newTestOrchestrator(t)
	pressRenderLagUp(t, o, 2)
	for o.cadence.Countdown() != 0 {
		step(t, o, input.Snapshot{})
	}

	fresh := step(t, o, input.Snapshot{})
	for i := 1; i <= 2; i++ {
		rep := step(t, o, input.Snapshot{})
		if rep.Fresh || rep.SampleFrame != fresh.Frame {
			t.Fatalf("stale frame %d: fresh=%v sample=%d", i, rep.Fresh, rep.SampleFrame)
		}
		if rep.PoseAge() != uint64(i) {
			t.Fatalf("PoseAge = %d, want %d", rep.PoseAge(), i)
		}
		last := comp.subs[len(comp.subs)-1]
		if last.Poses != comp.subs[len(comp.subs)-1-i].Poses {
			t.Fatalf("stale frame %d submitted different poses", i)
		}
	}
}

func TestOrchestrator_SubmissionMatchesRenderedViews(t *testing.T) {
	modes := []EyeRenderMode{Stereo, MonoLeftToBoth, LeftEyeOnly, RightEyeOnly, Swapped}
	wantRenders := []int{2, 2, 1, 1, 2}

	o, comp, rend := newTestOrchestrator(t)
	for i, m := range modes {
		if o.modes.Eye != m {
			t.Fatalf("eye mode = %s, want %s", o.modes.Eye, m)
		}
		rend.renders = nil
		rep := step(t, o, input.Snapshot{})
		if len(rend.renders) != wantRenders[i] {
			t.Fatalf("%s: %d renders, want %d", m, len(rend.renders), wantRenders[i])
		}
		sub := comp.subs[len(comp.subs)-1]
		if sub.Drawn != rep.Drawn {
			t.Fatalf("%s: submission drawn %v, report %v", m, sub.Drawn, rep.Drawn)
		}
		for _, r := range rend.renders {
			if sub.Poses[r.View.Target] != r.View.Pose {
				t.Fatalf("%s: target %s submitted a pose it was not rendered with", m, r.View.Target)
			}
		}
		// A advances the mode; the next iteration's empty snapshot releases it.
		step(t, o, input.Snapshot{Buttons: input.ButtonA})
	}
}

func TestOrchestrator_CursorFollowsTrackingLag(t *testing.T) {
	o, _, rend := newTestOrchestrator(t)

	// Raise tracking lag to 4: one press per two frames.
	var s input.Snapshot
	for i := 0; i < 4; i++ {
		s.IndexTrigger[input.Right] = 1
		step(t, o, s)
		s.IndexTrigger[input.Right] = 0
		step(t, o, s)
	}
	for i := 0; i < HistoryCapacity; i++ {
		step(t, o, input.Snapshot{})
	}
	rend.renders = nil
	rep := step(t, o, input.Snapshot{})
	if rep.TrackingLag != 4 {
		t.Fatalf("TrackingLag = %d", rep.TrackingLag)
	}
	want := mgl64.Vec3{float64(rep.Frame - 4), 0, 0}
	if rep.Cursor != want {
		t.Fatalf("cursor = %v, want %v", rep.Cursor, want)
	}
	for _, r := range rend.renders {
		if r.Cursor != want {
			t.Fatalf("%s eye cursor = %v, want %v", r.View.Target, r.Cursor, want)
		}
	}
}

func TestOrchestrator_InputAppliedBeforeSampling(t *testing.T) {
	o, comp, _ := newTestOrchestrator(t)
	var s input.Snapshot
	s.ThumbstickX[input.Right] = 1
	step(t, o, s)

	got := comp.offsets[0]
	want := [2]mgl64.Vec3{{-0.037, 0, 0}, {0.037, 0, 0}}
	for e := range got {
		if d := got[e][0] - want[e][0]; d > 1e-12 || d < -1e-12 {
			t.Fatalf("eye %d offset = %v, want %v", e, got[e], want[e])
		}
	}

	if diff := cmp.Diff([]string{"eyes", "hands", "submit"}, comp.calls); diff != "" {
		t.Fatalf("call order (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_RecenterAndQuit(t *testing.T) {
	o, comp, _ := newTestOrchestrator(t)
	rep := step(t, o, input.Snapshot{Buttons: input.ButtonRecenter})
	if comp.recentered != 1 || comp.calls[0] != "recenter" {
		t.Fatalf("recenter not called first: %v", comp.calls)
	}
	if !rep.Changes.Has(RequestRecenter) {
		t.Fatalf("changes = %s", rep.Changes)
	}
	step(t, o, input.Snapshot{Buttons: input.ButtonRecenter})
	if comp.recentered != 1 {
		t.Fatalf("held recenter fired %d times", comp.recentered)
	}

	if o.QuitRequested() {
		t.Fatalf("quit before request")
	}
	step(t, o, input.Snapshot{Buttons: input.ButtonQuit})
	if !o.QuitRequested() {
		t.Fatalf("quit not latched")
	}
}

func TestOrchestrator_WrapsCollaboratorErrors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name  string
		setup func(*mockCompositor, *recordingRenderer)
		want  string
	}{
		{"eyes", func(c *mockCompositor, _ *recordingRenderer) { c.eyeErr = boom }, "eye poses"},
		{"hands", func(c *mockCompositor, _ *recordingRenderer) { c.handErr = boom }, "hand poses"},
		{"render", func(_ *mockCompositor, r *recordingRenderer) { r.err = boom }, "render left eye"},
		{"submit", func(c *mockCompositor, _ *recordingRenderer) { c.submitErr = boom }, "submit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, comp, rend := newTestOrchestrator(t)
			tc.setup(comp, rend)
			_, err := o.Step(context.Background(), input.Snapshot{})
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want wrapped boom", err)
			}
			if !strings.Contains(err.Error(), tc.want) || !strings.HasPrefix(err.Error(), "frame 0:") {
				t.Fatalf("err = %q", err)
			}
			if o.Frame() != 0 {
				t.Fatalf("frame advanced on error")
			}
		})
	}
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	o, comp, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Step(ctx, input.Snapshot{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(comp.calls) != 0 {
		t.Fatalf("compositor touched: %v", comp.calls)
	}
}

func TestOrchestrator_ObserverAndState(t *testing.T) {
	comp := &mockCompositor{}
	log := &reportLog{}
	o, err := New(Config{
		Compositor: comp,
		Renderer:   SceneRendererFunc(func(context.Context, EyeRender) error { return nil }),
		Observer:   log,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}

	before := o.State()
	step(t, o, input.Snapshot{})
	step(t, o, input.Snapshot{})
	if len(log.reports) != 2 || log.reports[1].Frame != 1 {
		t.Fatalf("observer saw %d reports", len(log.reports))
	}
	after := o.State()
	if after.Frame != 2 || !after.LastFresh {
		t.Fatalf("state = %+v", after)
	}
	if before.Dials() != after.Dials() {
		t.Fatalf("dials moved without input:\n%s", cmp.Diff(before.Dials(), after.Dials()))
	}

	step(t, o, input.Snapshot{Buttons: input.ButtonB})
	st := o.State()
	if st.FreezeMode != FreezePosition || st.Dials() == after.Dials() {
		t.Fatalf("freeze change not visible in state: %+v", st)
	}
	if st.DeviceIOD != 0.064 || st.IOD != 0.064 || st.CubeScale != CubeScaleDefault {
		t.Fatalf("state = %+v", st)
	}
}
