package input

// DiscreteControl turns a level (held/not held) into a single press edge.
// The zero value is released.
type DiscreteControl struct {
	wasActive bool
}

// OnPressEdge records the current level and reports true only on the frame
// the control goes from released to held.
func (c *DiscreteControl) OnPressEdge(active bool) bool {
	edge := active && !c.wasActive
	c.wasActive = active
	return edge
}

// Active reports the level seen on the last call.
func (c *DiscreteControl) Active() bool { return c.wasActive }

// Default analog thresholds. A trigger counts as pressed above PressThreshold
// and is re-armed only after it falls below ReleaseThreshold.
const (
	PressThreshold   = 0.1
	ReleaseThreshold = 0.01
)

// TriggerLatch is a DiscreteControl for an analog trigger with hysteresis.
type TriggerLatch struct {
	Press   float64
	Release float64

	ctl DiscreteControl
}

// NewTriggerLatch uses the default thresholds.
func NewTriggerLatch() TriggerLatch {
	return TriggerLatch{Press: PressThreshold, Release: ReleaseThreshold}
}

// OnPressEdge reports true once per squeeze. Values between the two
// thresholds keep the previous level.
func (l *TriggerLatch) OnPressEdge(value float64) bool {
	active := l.ctl.Active()
	switch {
	case value > l.Press:
		active = true
	case value < l.Release:
		active = false
	}
	return l.ctl.OnPressEdge(active)
}

// StickDirection quantizes a thumbstick axis: -1, 0 or +1.
func StickDirection(v, deadzone float64) int {
	switch {
	case v > deadzone:
		return 1
	case v < -deadzone:
		return -1
	default:
		return 0
	}
}
