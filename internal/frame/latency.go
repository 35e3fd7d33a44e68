package frame

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Dial ranges.
const (
	MaxTrackingLag = HistoryCapacity - 1
	MaxRenderLag   = 10

	IODLimit = 0.3  // meters, either sign
	IODStep  = 0.01 // meters per held frame
)

// LatencyController owns the tracking lag, render lag and IOD dials.
// Every mutator saturates silently at its range and reports whether the
// value changed.
type LatencyController struct {
	trackingLag int
	renderLag   int
	iod         float64
	deviceIOD   float64
}

// NewLatencyController starts with both lags at zero and the IOD at the
// device-reported value (clamped into range).
func NewLatencyController(deviceIOD float64) *LatencyController {
	d := clampIOD(math.Abs(deviceIOD))
	return &LatencyController{iod: d, deviceIOD: d}
}

// DeviceIOD computes the physical IOD from the two hmd-to-eye offsets.
func DeviceIOD(hmdToEye [2]mgl64.Vec3) float64 {
	return math.Abs(hmdToEye[LeftEye][0] - hmdToEye[RightEye][0])
}

func (c *LatencyController) TrackingLag() int   { return c.trackingLag }
func (c *LatencyController) RenderLag() int     { return c.renderLag }
func (c *LatencyController) IOD() float64       { return c.iod }
func (c *LatencyController) DeviceIOD() float64 { return c.deviceIOD }

// AdjustTrackingLag moves the tracking lag one frame in the sign of dir.
func (c *LatencyController) AdjustTrackingLag(dir int) bool {
	next := clampInt(c.trackingLag+sign(dir), 0, MaxTrackingLag)
	changed := next != c.trackingLag
	c.trackingLag = next
	return changed
}

// AdjustRenderLag moves the render lag one frame in the sign of dir.
// FrameCadence only picks the new value up at its next re-arm.
func (c *LatencyController) AdjustRenderLag(dir int) bool {
	next := clampInt(c.renderLag+sign(dir), 0, MaxRenderLag)
	changed := next != c.renderLag
	c.renderLag = next
	return changed
}

// StepIOD moves the IOD by IODStep in the sign of dir.
func (c *LatencyController) StepIOD(dir int) bool {
	next := clampIOD(c.iod + float64(sign(dir))*IODStep)
	changed := next != c.iod
	c.iod = next
	return changed
}

// ResetIOD restores the device IOD.
func (c *LatencyController) ResetIOD() bool {
	changed := c.iod != c.deviceIOD
	c.iod = c.deviceIOD
	return changed
}

// EyeOffsets returns the hmd-to-eye translations for the current IOD:
// left x = -iod/2, right x = +iod/2.
func (c *LatencyController) EyeOffsets() [2]mgl64.Vec3 {
	half := c.iod / 2
	return [2]mgl64.Vec3{{-half, 0, 0}, {half, 0, 0}}
}

func clampIOD(v float64) float64 {
	return math.Max(-IODLimit, math.Min(IODLimit, v))
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
