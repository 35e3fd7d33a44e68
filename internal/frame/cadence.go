package frame

import (
	"github.com/go-gl/mathgl/mgl64"

	"hmdlag/internal/pose"
)

// Sample is a head pose/projection pair as taken from the compositor on a
// fresh frame and replayed on stale ones.
type Sample struct {
	Frame       uint64
	SampleTime  float64
	Poses       [2]pose.Pose
	Projections [2]mgl64.Mat4
}

// Cadence implements render-lag emulation: one fresh sample followed by
// renderLag replays of it.
//
// The countdown is re-armed from the renderLag passed in at the moment it
// hits zero, so a change to the dial is only seen at the next fresh frame.
type Cadence struct {
	countdown int
	cached    Sample
}

// Step runs the cadence for one frame. If the countdown is zero it calls
// sample, caches the result and re-arms to renderLag; otherwise it returns
// the cached sample and counts down. A failed sample leaves the state
// untouched.
func (c *Cadence) Step(renderLag int, sample func() (Sample, error)) (Sample, bool, error) {
	if c.countdown > 0 {
		c.countdown--
		return c.cached, false, nil
	}
	s, err := sample()
	if err != nil {
		return Sample{}, false, err
	}
	c.cached = s
	c.countdown = clampInt(renderLag, 0, MaxRenderLag)
	return s, true, nil
}

// Countdown is the number of stale frames left before the next fresh one.
func (c *Cadence) Countdown() int { return c.countdown }
