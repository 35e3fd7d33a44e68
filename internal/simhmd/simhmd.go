// Package simhmd is a deterministic stand-in for a headset runtime. It drives
// the frame core headless: synthetic head and hand motion as a function of
// the frame index, fixed asymmetric per-eye projections, and a log of what
// was submitted.
package simhmd

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"hmdlag/internal/frame"
	"hmdlag/internal/pose"
)

var ErrClosed = errors.New("simhmd: compositor closed")

// Config shapes the synthetic motion. Angles are radians, lengths meters.
type Config struct {
	FrameRate float64
	DeviceIOD float64

	HeadHeight float64
	YawAmp     float64
	PitchAmp   float64
	SwayAmp    float64
	Period     float64 // seconds per yaw cycle

	HandRadius float64

	// Per-eye field of view as tangents of the half angles.
	TanUp, TanDown, TanIn, TanOut float64
	Near, Far                     float64

	// Record keeps the last N submissions; 0 only counts them.
	Record int
}

func DefaultConfig() Config {
	return Config{
		FrameRate:  90,
		DeviceIOD:  0.064,
		HeadHeight: 1.6,
		YawAmp:     0.6,
		PitchAmp:   0.15,
		SwayAmp:    0.05,
		Period:     4,
		HandRadius: 0.15,
		TanUp:      1.3,
		TanDown:    1.3,
		TanIn:      1.05,
		TanOut:     1.4,
		Near:       0.01,
		Far:        1000,
	}
}

// Compositor implements frame.Compositor.
type Compositor struct {
	cfg Config

	mu        sync.Mutex
	lastFrame uint64
	origin    recenter
	submitted uint64
	subs      []frame.Submission
	closed    bool
}

type recenter struct {
	yaw  float64
	x, z float64
}

var _ frame.Compositor = (*Compositor)(nil)

func New(cfg Config) *Compositor {
	def := DefaultConfig()
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = def.FrameRate
	}
	if cfg.DeviceIOD == 0 {
		cfg.DeviceIOD = def.DeviceIOD
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.Near <= 0 || cfg.Far <= cfg.Near {
		cfg.Near, cfg.Far = def.Near, def.Far
	}
	if cfg.TanUp <= 0 || cfg.TanDown <= 0 || cfg.TanIn <= 0 || cfg.TanOut <= 0 {
		cfg.TanUp, cfg.TanDown, cfg.TanIn, cfg.TanOut = def.TanUp, def.TanDown, def.TanIn, def.TanOut
	}
	return &Compositor{cfg: cfg}
}

func (c *Compositor) DeviceIOD() float64 { return c.cfg.DeviceIOD }

// SampleTime is the sensor time of frame in seconds.
func (c *Compositor) SampleTime(f uint64) float64 { return float64(f) / c.cfg.FrameRate }

// HeadPose is the tracked head pose at frame, relative to the current origin.
func (c *Compositor) HeadPose(f uint64) pose.Pose {
	c.mu.Lock()
	o := c.origin
	c.mu.Unlock()
	return c.head(f, o)
}

func (c *Compositor) head(f uint64, o recenter) pose.Pose {
	t := c.SampleTime(f)
	w := 2 * math.Pi / c.cfg.Period
	yaw := c.cfg.YawAmp*math.Sin(w*t) - o.yaw
	pitch := c.cfg.PitchAmp * math.Sin(0.7*w*t)
	pos := mgl64.Vec3{c.cfg.SwayAmp * math.Sin(1.3*w*t), c.cfg.HeadHeight, 0}
	pos = mgl64.Rotate3DY(-o.yaw).Mul3x1(pos.Sub(mgl64.Vec3{o.x, 0, o.z}))
	q := mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0}).Mul(mgl64.QuatRotate(pitch, mgl64.Vec3{1, 0, 0}))
	return pose.New(pos, q)
}

func (c *Compositor) EyePoses(f uint64, hmdToEye [2]mgl64.Vec3) ([2]pose.Pose, float64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return [2]pose.Pose{}, 0, ErrClosed
	}
	c.lastFrame = f
	o := c.origin
	c.mu.Unlock()

	h := c.head(f, o)
	var out [2]pose.Pose
	for e := range out {
		out[e] = h.Offset(hmdToEye[e])
	}
	return out, c.SampleTime(f), nil
}

// EyeProjections mirrors the inner/outer tangents between the eyes.
func (c *Compositor) EyeProjections() [2]mgl64.Mat4 {
	n := c.cfg.Near
	up, down := n*c.cfg.TanUp, n*c.cfg.TanDown
	in, out := n*c.cfg.TanIn, n*c.cfg.TanOut
	return [2]mgl64.Mat4{
		mgl64.Frustum(-out, in, -down, up, n, c.cfg.Far),
		mgl64.Frustum(-in, out, -down, up, n, c.cfg.Far),
	}
}

// HandPoses moves both controllers on circles in front of the body, the
// left one half a cycle behind.
func (c *Compositor) HandPoses(f uint64) ([2]pose.Pose, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return [2]pose.Pose{}, ErrClosed
	}
	o := c.origin
	c.mu.Unlock()

	t := c.SampleTime(f)
	w := 2 * math.Pi / c.cfg.Period
	r := c.cfg.HandRadius
	var out [2]pose.Pose
	for h, side := range [2]float64{-1, 1} {
		phase := w*t - float64(1-h)*math.Pi
		pos := mgl64.Vec3{side*0.2 + r*math.Cos(phase), 1.2 + r*math.Sin(phase), -0.4}
		pos = mgl64.Rotate3DY(-o.yaw).Mul3x1(pos.Sub(mgl64.Vec3{o.x, 0, o.z}))
		out[h] = pose.New(pos, mgl64.QuatIdent())
	}
	return out, nil
}

func (c *Compositor) SubmitFrame(ctx context.Context, s frame.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.submitted++
	if c.cfg.Record > 0 {
		if len(c.subs) == c.cfg.Record {
			copy(c.subs, c.subs[1:])
			c.subs = c.subs[:len(c.subs)-1]
		}
		c.subs = append(c.subs, s)
	}
	return nil
}

// Recenter makes the head yaw and horizontal position of the last sampled
// frame the new origin. Height is kept.
func (c *Compositor) Recenter() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	t := c.SampleTime(c.lastFrame)
	w := 2 * math.Pi / c.cfg.Period
	c.origin = recenter{
		yaw: c.cfg.YawAmp * math.Sin(w*t),
		x:   c.cfg.SwayAmp * math.Sin(1.3*w*t),
	}
	return nil
}

// Submitted returns the frame count and a copy of the recorded submissions.
func (c *Compositor) Submitted() (uint64, []frame.Submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted, append([]frame.Submission(nil), c.subs...)
}

// Close makes every later call fail with ErrClosed.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
