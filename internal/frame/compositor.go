package frame

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"hmdlag/internal/pose"
)

// PoseSource is the tracking half of the compositor.
type PoseSource interface {
	// DeviceIOD is the physical inter-ocular distance in meters.
	DeviceIOD() float64

	// EyePoses returns both eye poses for frame, computed with the given
	// hmd-to-eye offsets, and the sensor sample time in seconds.
	EyePoses(frame uint64, hmdToEye [2]mgl64.Vec3) ([2]pose.Pose, float64, error)

	// EyeProjections returns the per-eye projection matrices.
	EyeProjections() [2]mgl64.Mat4

	// HandPoses returns the left and right controller poses for frame.
	HandPoses(frame uint64) ([2]pose.Pose, error)
}

// FrameSink accepts the rendered eye targets.
type FrameSink interface {
	// SubmitFrame hands the frame to the display. It is the one call that
	// may block on display pacing.
	SubmitFrame(ctx context.Context, s Submission) error
}

// Recenterer resets the tracking origin to the current head pose.
type Recenterer interface {
	Recenter() error
}

// Compositor is everything the frame core needs from the display runtime.
type Compositor interface {
	PoseSource
	FrameSink
	Recenterer
}

// Submission is one frame as handed to FrameSink. Poses[i] is exactly the
// pose physical target i was rendered with; both come from the same
// cadence sample.
type Submission struct {
	Frame      uint64
	SampleTime float64
	Poses      [2]pose.Pose
	Drawn      [2]bool
}

// EyeView is what the renderer needs to draw one physical target.
type EyeView struct {
	// Target is the physical eye buffer being drawn.
	Target Eye
	// Source is the logical eye whose projection and pose feed Target.
	Source     Eye
	Projection mgl64.Mat4
	Pose       pose.Pose
	View       mgl64.Mat4
}

// EyeRender is one SceneRenderer call.
type EyeRender struct {
	Frame  uint64
	View   EyeView
	Scene  Scene
	Cursor mgl64.Vec3
}

// SceneRenderer draws scene content into one eye target.
type SceneRenderer interface {
	RenderEye(ctx context.Context, r EyeRender) error
}

// SceneRendererFunc adapts a function to SceneRenderer.
type SceneRendererFunc func(ctx context.Context, r EyeRender) error

func (f SceneRendererFunc) RenderEye(ctx context.Context, r EyeRender) error { return f(ctx, r) }

// Observer receives a Report after every completed Step.
type Observer interface {
	ObserveFrame(r Report)
}
