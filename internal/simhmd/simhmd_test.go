package simhmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdlag/internal/frame"
	"hmdlag/internal/input"
)

func TestEyePoses_SeparatedByOffsets(t *testing.T) {
	c := New(DefaultConfig())
	off := [2]mgl64.Vec3{{-0.032, 0, 0}, {0.032, 0, 0}}
	for _, f := range []uint64{0, 17, 250} {
		eyes, ts, err := c.EyePoses(f, off)
		require.NoError(t, err)
		assert.InDelta(t, float64(f)/90, ts, 1e-12)
		assert.InDelta(t, 0.064, eyes[0].Position.Sub(eyes[1].Position).Len(), 1e-9)
		assert.Equal(t, eyes[0].Orientation, eyes[1].Orientation)
	}
}

func TestEyePoses_Deterministic(t *testing.T) {
	a, b := New(DefaultConfig()), New(DefaultConfig())
	off := [2]mgl64.Vec3{{-0.03, 0, 0}, {0.03, 0, 0}}
	pa, _, _ := a.EyePoses(42, off)
	pb, _, _ := b.EyePoses(42, off)
	assert.Equal(t, pa, pb)
}

func TestEyeProjections_Mirrored(t *testing.T) {
	p := New(DefaultConfig()).EyeProjections()
	assert.NotEqual(t, p[0], p[1])
	// Column 2, row 0 carries the horizontal asymmetry.
	assert.Less(t, p[0].At(0, 2), 0.0)
	assert.InDelta(t, -p[0].At(0, 2), p[1].At(0, 2), 1e-12)
	assert.InDelta(t, p[0].At(1, 1), p[1].At(1, 1), 1e-12)
}

func TestRecenter_ZeroesYawAndSway(t *testing.T) {
	c := New(DefaultConfig())
	const f = 60
	_, _, err := c.EyePoses(f, [2]mgl64.Vec3{})
	require.NoError(t, err)

	before := c.HeadPose(f)
	require.Greater(t, before.Orientation.Rotate(mgl64.Vec3{0, 0, -1}).X()*-1, 0.1)

	require.NoError(t, c.Recenter())
	after := c.HeadPose(f)
	fwd := after.Orientation.Rotate(mgl64.Vec3{0, 0, -1})
	assert.InDelta(t, 0, fwd.X(), 1e-9)
	assert.InDelta(t, 0, after.Position.X(), 1e-9)
	assert.InDelta(t, 0, after.Position.Z(), 1e-9)
	assert.InDelta(t, DefaultConfig().HeadHeight, after.Position.Y(), 1e-9)
}

func TestHandPoses_HalfCycleApart(t *testing.T) {
	c := New(DefaultConfig())
	h, err := c.HandPoses(0)
	require.NoError(t, err)
	// At t=0 both hands are at the outer edge of their circles.
	assert.InDelta(t, 0.35, h[1].Position.X(), 1e-9)
	assert.InDelta(t, -0.35, h[0].Position.X(), 1e-9)
}

func TestSubmitFrame_RecordsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Record = 3
	c := New(cfg)
	for f := uint64(0); f < 5; f++ {
		require.NoError(t, c.SubmitFrame(context.Background(), frame.Submission{Frame: f}))
	}
	n, subs := c.Submitted()
	assert.Equal(t, uint64(5), n)
	require.Len(t, subs, 3)
	assert.Equal(t, uint64(2), subs[0].Frame)
	assert.Equal(t, uint64(4), subs[2].Frame)
}

func TestClose(t *testing.T) {
	c := New(DefaultConfig())
	require.NoError(t, c.Close())
	_, _, err := c.EyePoses(0, [2]mgl64.Vec3{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.HandPoses(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.SubmitFrame(context.Background(), frame.Submission{}), ErrClosed)
	assert.ErrorIs(t, c.Recenter(), ErrClosed)
}

func TestRenderer_CountsAndRecords(t *testing.T) {
	r := NewRenderer(2)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.RenderEye(ctx, frame.EyeRender{Frame: uint64(i), View: frame.EyeView{Target: frame.LeftEye}}))
	}
	require.NoError(t, r.RenderEye(ctx, frame.EyeRender{Frame: 3, View: frame.EyeView{Target: frame.RightEye}}))
	assert.Equal(t, [2]uint64{3, 1}, r.Counts())
	got := r.Renders()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Frame)
	assert.Equal(t, uint64(3), got[1].Frame)
}

func TestOrchestrator_AgainstSim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Record = 8
	comp := New(cfg)
	rend := NewRenderer(0)
	o, err := frame.New(frame.Config{
		Compositor: comp,
		Renderer:   rend,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	// Squeeze the right grip twice: render lag 2.
	var s input.Snapshot
	for i := 0; i < 2; i++ {
		s.HandTrigger[input.Right] = 1
		_, err := o.Step(context.Background(), s)
		require.NoError(t, err)
		s.HandTrigger[input.Right] = 0
		_, err = o.Step(context.Background(), s)
		require.NoError(t, err)
	}
	for i := 0; i < 96; i++ {
		_, err := o.Step(context.Background(), input.Snapshot{})
		require.NoError(t, err)
	}

	n, subs := comp.Submitted()
	assert.Equal(t, uint64(100), n)
	assert.Equal(t, [2]uint64{100, 100}, rend.Counts())

	// With render lag 2 frames 92..99 replay the samples of 92, 95 and 98.
	runs := 1
	for i := 1; i < len(subs); i++ {
		if subs[i].Poses != subs[i-1].Poses {
			runs++
		}
	}
	assert.Equal(t, 3, runs)

	st := o.State()
	assert.Equal(t, 2, st.RenderLag)
	assert.InDelta(t, 0.064, st.IOD, 1e-12)
	for _, sub := range subs {
		assert.Equal(t, [2]bool{true, true}, sub.Drawn)
	}
}
