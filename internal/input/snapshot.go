// Package input defines the per-frame controller snapshot consumed by the frame
// core and the latches that turn held controls into single press edges.
package input

import (
	"fmt"
	"math"
	"strings"
)

// Hand indexes per-hand analog values.
type Hand int

const (
	Left Hand = iota
	Right
)

func (h Hand) String() string {
	if h == Left {
		return "left"
	}
	return "right"
}

// Button is a bit in Snapshot.Buttons.
type Button uint32

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonX
	ButtonY
	ButtonLThumb
	ButtonRThumb
	ButtonRecenter
	ButtonQuit
)

var buttonNames = []struct {
	b    Button
	name string
}{
	{ButtonA, "a"},
	{ButtonB, "b"},
	{ButtonX, "x"},
	{ButtonY, "y"},
	{ButtonLThumb, "lthumb"},
	{ButtonRThumb, "rthumb"},
	{ButtonRecenter, "recenter"},
	{ButtonQuit, "quit"},
}

func (b Button) String() string {
	var parts []string
	for _, bn := range buttonNames {
		if b&bn.b != 0 {
			parts = append(parts, bn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseButton maps a button name ("a", "rthumb", ...) to its bit.
func ParseButton(name string) (Button, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, bn := range buttonNames {
		if bn.name == n {
			return bn.b, nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// Snapshot is the controller state sampled once per frame.
//
// Triggers are normalized to [0,1]; thumbstick axes to [-1,1].
type Snapshot struct {
	IndexTrigger [2]float64
	HandTrigger  [2]float64
	ThumbstickX  [2]float64
	Buttons      Button
}

// Pressed reports whether all bits in b are down.
func (s Snapshot) Pressed(b Button) bool {
	return b != 0 && s.Buttons&b == b
}

// Axis names accepted by SetAxis.
const (
	AxisLeftIndex   = "left_index"
	AxisRightIndex  = "right_index"
	AxisLeftHand    = "left_hand"
	AxisRightHand   = "right_hand"
	AxisLeftStickX  = "left_stick_x"
	AxisRightStickX = "right_stick_x"
)

// SetAxis writes an analog value by name, clamping to the axis range.
func (s *Snapshot) SetAxis(name string, v float64) error {
	switch strings.ToLower(name) {
	case AxisLeftIndex:
		s.IndexTrigger[Left] = clamp(v, 0, 1)
	case AxisRightIndex:
		s.IndexTrigger[Right] = clamp(v, 0, 1)
	case AxisLeftHand:
		s.HandTrigger[Left] = clamp(v, 0, 1)
	case AxisRightHand:
		s.HandTrigger[Right] = clamp(v, 0, 1)
	case AxisLeftStickX:
		s.ThumbstickX[Left] = clamp(v, -1, 1)
	case AxisRightStickX:
		s.ThumbstickX[Right] = clamp(v, -1, 1)
	default:
		return fmt.Errorf("unknown axis %q", name)
	}
	return nil
}

// Merge combines two sources of the same frame: buttons are OR-ed and each
// analog value keeps whichever has the larger magnitude.
func Merge(a, b Snapshot) Snapshot {
	out := Snapshot{Buttons: a.Buttons | b.Buttons}
	for h := 0; h < 2; h++ {
		out.IndexTrigger[h] = larger(a.IndexTrigger[h], b.IndexTrigger[h])
		out.HandTrigger[h] = larger(a.HandTrigger[h], b.HandTrigger[h])
		out.ThumbstickX[h] = larger(a.ThumbstickX[h], b.ThumbstickX[h])
	}
	return out
}

func larger(a, b float64) float64 {
	if math.Abs(b) > math.Abs(a) {
		return b
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
