package frame

import (
	"strings"

	"hmdlag/internal/input"
)

// Change is a bitmask of what one control pass did.
type Change uint32

const (
	ChangeTrackingLag Change = 1 << iota
	ChangeRenderLag
	ChangeIOD
	ChangeFreezeMode
	ChangeEyeMode
	ChangeSceneMode
	ChangeSuperRotation
	ChangeCubeScale
	RequestRecenter
	RequestQuit
)

var changeNames = []struct {
	c    Change
	name string
}{
	{ChangeTrackingLag, "tracking_lag"},
	{ChangeRenderLag, "render_lag"},
	{ChangeIOD, "iod"},
	{ChangeFreezeMode, "freeze_mode"},
	{ChangeEyeMode, "eye_mode"},
	{ChangeSceneMode, "scene_mode"},
	{ChangeSuperRotation, "super_rotation"},
	{ChangeCubeScale, "cube_scale"},
	{RequestRecenter, "recenter"},
	{RequestQuit, "quit"},
}

func (c Change) Has(f Change) bool { return c&f != 0 }

func (c Change) String() string {
	var parts []string
	for _, cn := range changeNames {
		if c&cn.c != 0 {
			parts = append(parts, cn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// DefaultStickDeadzone is the thumbstick deflection below which a stick
// counts as centered.
const DefaultStickDeadzone = 0.2

// Modes are the cyclic and boolean selections driven by buttons.
type Modes struct {
	Freeze        FreezeMode
	Eye           EyeRenderMode
	SuperRotation bool
}

// Controls maps an input snapshot onto the dials. Each logical control owns
// its own latch, so holding one button never masks another.
type Controls struct {
	Deadzone float64

	trackDown, trackUp   input.TriggerLatch
	renderDown, renderUp input.TriggerLatch

	eyeMode, freeze, scene, super input.DiscreteControl
	iodReset, cubeReset           input.DiscreteControl
	recenter, quit                input.DiscreteControl
}

func NewControls(deadzone float64) *Controls {
	if deadzone <= 0 {
		deadzone = DefaultStickDeadzone
	}
	return &Controls{
		Deadzone:   deadzone,
		trackDown:  input.NewTriggerLatch(),
		trackUp:    input.NewTriggerLatch(),
		renderDown: input.NewTriggerLatch(),
		renderUp:   input.NewTriggerLatch(),
	}
}

// Apply runs one frame of input. Lag dials and mode buttons change at most
// once per press; the two thumbsticks step every frame they are deflected.
// All latches see the snapshot on every call, whatever they end up doing.
func (c *Controls) Apply(s input.Snapshot, lat *LatencyController, modes *Modes, scene *Scene) Change {
	var ch Change

	if c.trackDown.OnPressEdge(s.IndexTrigger[input.Left]) && lat.AdjustTrackingLag(-1) {
		ch |= ChangeTrackingLag
	}
	if c.trackUp.OnPressEdge(s.IndexTrigger[input.Right]) && lat.AdjustTrackingLag(+1) {
		ch |= ChangeTrackingLag
	}
	if c.renderDown.OnPressEdge(s.HandTrigger[input.Left]) && lat.AdjustRenderLag(-1) {
		ch |= ChangeRenderLag
	}
	if c.renderUp.OnPressEdge(s.HandTrigger[input.Right]) && lat.AdjustRenderLag(+1) {
		ch |= ChangeRenderLag
	}

	// Stick deflection wins over the stick click.
	iodReset := c.iodReset.OnPressEdge(s.Pressed(input.ButtonRThumb))
	if dir := input.StickDirection(s.ThumbstickX[input.Right], c.Deadzone); dir != 0 {
		if lat.StepIOD(dir) {
			ch |= ChangeIOD
		}
	} else if iodReset && lat.ResetIOD() {
		ch |= ChangeIOD
	}

	cubeReset := c.cubeReset.OnPressEdge(s.Pressed(input.ButtonLThumb))
	if dir := input.StickDirection(s.ThumbstickX[input.Left], c.Deadzone); dir != 0 {
		if scene.StepCubeScale(dir) {
			ch |= ChangeCubeScale
		}
	} else if cubeReset && scene.ResetCubeScale() {
		ch |= ChangeCubeScale
	}

	if c.eyeMode.OnPressEdge(s.Pressed(input.ButtonA)) {
		modes.Eye = modes.Eye.Next()
		ch |= ChangeEyeMode
	}
	if c.freeze.OnPressEdge(s.Pressed(input.ButtonB)) {
		modes.Freeze = modes.Freeze.Next()
		ch |= ChangeFreezeMode
	}
	if c.scene.OnPressEdge(s.Pressed(input.ButtonX)) {
		scene.Mode = scene.Mode.Next()
		ch |= ChangeSceneMode
	}
	if c.super.OnPressEdge(s.Pressed(input.ButtonY)) {
		modes.SuperRotation = !modes.SuperRotation
		ch |= ChangeSuperRotation
	}
	if c.recenter.OnPressEdge(s.Pressed(input.ButtonRecenter)) {
		ch |= RequestRecenter
	}
	if c.quit.OnPressEdge(s.Pressed(input.ButtonQuit)) {
		ch |= RequestQuit
	}
	return ch
}
