package frame

import "math"

// Cube scale dial.
const (
	CubeScaleDefault = 0.1
	CubeScaleMin     = 0.01
	CubeScaleMax     = 0.5
	cubeShrink       = 0.99
	cubeGrow         = 1.01
)

// Scene is the scene-content state passed through to the renderer.
type Scene struct {
	Mode      SceneMode
	CubeScale float64
}

func defaultScene() Scene {
	return Scene{Mode: CubesAndStereoSkybox, CubeScale: CubeScaleDefault}
}

// StepCubeScale scales the cube by 0.99 or 1.01 in the sign of dir.
func (s *Scene) StepCubeScale(dir int) bool {
	next := s.CubeScale
	switch sign(dir) {
	case 1:
		next *= cubeGrow
	case -1:
		next *= cubeShrink
	}
	next = math.Max(CubeScaleMin, math.Min(CubeScaleMax, next))
	changed := next != s.CubeScale
	s.CubeScale = next
	return changed
}

func (s *Scene) ResetCubeScale() bool {
	changed := s.CubeScale != CubeScaleDefault
	s.CubeScale = CubeScaleDefault
	return changed
}
