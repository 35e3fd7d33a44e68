package frame

import "fmt"

// Eye names a logical eye or a physical render target.
type Eye int

const (
	LeftEye Eye = iota
	RightEye
)

func (e Eye) String() string {
	if e == LeftEye {
		return "left"
	}
	return "right"
}

// Other returns the opposite eye.
func (e Eye) Other() Eye { return 1 - e }

// FreezeMode selects which pose components are held at the previous frame's value.
type FreezeMode int

const (
	Live FreezeMode = iota
	FreezePosition
	FreezeOrientation
	FreezeBoth

	freezeModeCount = 4
)

var freezeModeNames = [...]string{"live", "freeze_position", "freeze_orientation", "freeze_both"}

func (m FreezeMode) String() string {
	if m < 0 || int(m) >= freezeModeCount {
		return fmt.Sprintf("FreezeMode(%d)", int(m))
	}
	return freezeModeNames[m]
}

// Next cycles Live → FreezePosition → FreezeOrientation → FreezeBoth → Live.
func (m FreezeMode) Next() FreezeMode { return (m + 1) % freezeModeCount }

func (m FreezeMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *FreezeMode) UnmarshalText(b []byte) error {
	i, err := parseModeName("freeze mode", freezeModeNames[:], b)
	*m = FreezeMode(i)
	return err
}

// EyeRenderMode selects which logical eye feeds each physical target.
type EyeRenderMode int

const (
	Stereo EyeRenderMode = iota
	MonoLeftToBoth
	LeftEyeOnly
	RightEyeOnly
	Swapped

	eyeRenderModeCount = 5
)

var eyeRenderModeNames = [...]string{"stereo", "mono_left", "left_only", "right_only", "swapped"}

func (m EyeRenderMode) String() string {
	if m < 0 || int(m) >= eyeRenderModeCount {
		return fmt.Sprintf("EyeRenderMode(%d)", int(m))
	}
	return eyeRenderModeNames[m]
}

// Next cycles through the five modes in declaration order.
func (m EyeRenderMode) Next() EyeRenderMode { return (m + 1) % eyeRenderModeCount }

func (m EyeRenderMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *EyeRenderMode) UnmarshalText(b []byte) error {
	i, err := parseModeName("eye render mode", eyeRenderModeNames[:], b)
	*m = EyeRenderMode(i)
	return err
}

// Route returns, for each physical target, the logical eye that feeds it and
// whether the target is drawn this frame. A skipped target keeps its own eye
// as source so its submitted pose is still well defined.
func (m EyeRenderMode) Route() (src [2]Eye, draw [2]bool) {
	src = [2]Eye{LeftEye, RightEye}
	draw = [2]bool{true, true}
	switch m {
	case MonoLeftToBoth:
		src[RightEye] = LeftEye
	case LeftEyeOnly:
		draw[RightEye] = false
	case RightEyeOnly:
		draw[LeftEye] = false
	case Swapped:
		src = [2]Eye{RightEye, LeftEye}
	}
	return src, draw
}

// SceneMode selects the scene content the renderer draws.
type SceneMode int

const (
	CubesAndStereoSkybox SceneMode = iota
	StereoSkybox
	MonoSkybox
	CustomSkybox

	sceneModeCount = 4
)

var sceneModeNames = [...]string{"cubes_stereo_skybox", "stereo_skybox", "mono_skybox", "custom_skybox"}

func (m SceneMode) String() string {
	if m < 0 || int(m) >= sceneModeCount {
		return fmt.Sprintf("SceneMode(%d)", int(m))
	}
	return sceneModeNames[m]
}

func (m SceneMode) Next() SceneMode { return (m + 1) % sceneModeCount }

func (m SceneMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SceneMode) UnmarshalText(b []byte) error {
	i, err := parseModeName("scene mode", sceneModeNames[:], b)
	*m = SceneMode(i)
	return err
}

func parseModeName(kind string, names []string, b []byte) (int, error) {
	for i, n := range names {
		if n == string(b) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, b)
}
