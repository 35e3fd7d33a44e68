package frame

import "github.com/go-gl/mathgl/mgl64"

// HistoryCapacity is the number of position samples PoseHistory retains.
const HistoryCapacity = 30

// PoseHistory is a fixed ring of recent controller positions used to replay
// a delayed sample for tracking-lag emulation.
//
// Warm-up: until HistoryCapacity samples have been pushed, Pop returns the
// first sample ever pushed for any lag.
//
// Once full, Pop(lag) returns the sample lag slots behind the read cursor and
// advances the cursor by one. The cursor moves on every Pop whatever the lag,
// so a frame that needs one delayed sample must Pop exactly once. If the
// writer laps an unread slot, the cursor is pushed forward with it so it keeps
// pointing at the oldest retained sample.
//
// Not safe for concurrent use; the frame loop owns it.
type PoseHistory struct {
	positions [HistoryCapacity]mgl64.Vec3
	read      int
	write     int
	count     int
	unread    int
}

// Push stores p, overwriting the oldest slot once full.
func (h *PoseHistory) Push(p mgl64.Vec3) {
	if h.count == HistoryCapacity && h.unread == HistoryCapacity {
		h.read = (h.read + 1) % HistoryCapacity
	}
	h.positions[h.write] = p
	h.write = (h.write + 1) % HistoryCapacity
	if h.count < HistoryCapacity {
		h.count++
	}
	if h.unread < HistoryCapacity {
		h.unread++
	}
}

// Pop returns a delayed sample. lag is clamped to [0, HistoryCapacity-1].
func (h *PoseHistory) Pop(lag int) mgl64.Vec3 {
	lag = clampInt(lag, 0, HistoryCapacity-1)
	if h.unread > 0 {
		h.unread--
	}

	i := 0
	if h.count == HistoryCapacity {
		i = (h.read - lag + HistoryCapacity) % HistoryCapacity
	}
	h.read = (h.read + 1) % HistoryCapacity
	return h.positions[i]
}

// Len is the number of retained samples.
func (h *PoseHistory) Len() int { return h.count }

// Warm reports whether the ring has filled once.
func (h *PoseHistory) Warm() bool { return h.count == HistoryCapacity }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
