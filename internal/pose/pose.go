// Package pose holds the tracked-pose value type shared by the frame core and
// its collaborators, plus the orientation leveler.
package pose

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid transform sampled from the tracking source for one frame.
// It is a value; copying it is the only way to "keep" a pose.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Identity is the pose at the tracking origin looking down -Z.
func Identity() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// New builds a pose and normalizes the orientation.
func New(position mgl64.Vec3, orientation mgl64.Quat) Pose {
	return Pose{Position: position, Orientation: orientation.Normalize()}
}

// FromMatrix splits a homogeneous rigid transform into a Pose.
func FromMatrix(m mgl64.Mat4) Pose {
	return Pose{
		Position:    m.Col(3).Vec3(),
		Orientation: mgl64.Mat4ToQuat(m).Normalize(),
	}
}

// Rotation returns the upper-left 3x3 block of the pose transform.
func (p Pose) Rotation() mgl64.Mat3 {
	return p.Orientation.Mat4().Mat3()
}

// Matrix returns translation ∘ rotation.
func (p Pose) Matrix() mgl64.Mat4 {
	m := p.Orientation.Mat4()
	m.SetCol(3, p.Position.Vec4(1))
	return m
}

// View returns the camera view matrix, the inverse of Matrix.
func (p Pose) View() mgl64.Mat4 {
	return p.Matrix().Inv()
}

// WithPosition returns p with its translation replaced.
func (p Pose) WithPosition(position mgl64.Vec3) Pose {
	p.Position = position
	return p
}

// WithOrientation returns p with its rotation replaced.
func (p Pose) WithOrientation(orientation mgl64.Quat) Pose {
	p.Orientation = orientation
	return p
}

// Offset returns p translated by a vector expressed in p's local frame.
// Eye poses are produced this way from a head pose and an hmd-to-eye offset.
func (p Pose) Offset(local mgl64.Vec3) Pose {
	p.Position = p.Position.Add(p.Orientation.Rotate(local))
	return p
}

// ApproxEqual reports whether both components match within eps.
// Orientations q and -q describe the same rotation and compare equal.
func (p Pose) ApproxEqual(o Pose, eps float64) bool {
	for i := range p.Position {
		if math.Abs(p.Position[i]-o.Position[i]) > eps {
			return false
		}
	}
	return p.Orientation.OrientationEqualThreshold(o.Orientation, eps)
}

func (p Pose) String() string {
	return fmt.Sprintf("pos=(%.3f,%.3f,%.3f) rot=(%.3f;%.3f,%.3f,%.3f)",
		p.Position[0], p.Position[1], p.Position[2],
		p.Orientation.W, p.Orientation.V[0], p.Orientation.V[1], p.Orientation.V[2])
}
