package pose

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Euler holds the three sequential-axis angles of a rotation R = Rz(Z)·Ry(Y)·Rx(X),
// in radians.
type Euler struct {
	X, Y, Z float64
}

// Decompose extracts X-then-Y-then-Z Euler angles from an orthonormal rotation.
// Y is in [-π/2, π/2]; at Y = ±π/2 the split between X and Z is whatever atan2 yields.
func Decompose(r mgl64.Mat3) Euler {
	// r.At(row, col); the closed form below reads the matrix column-major.
	t1 := math.Atan2(r.At(2, 1), r.At(2, 2))
	c2 := math.Hypot(r.At(0, 0), r.At(1, 0))
	t2 := math.Atan2(-r.At(2, 0), c2)
	s1, c1 := math.Sincos(t1)
	t3 := math.Atan2(s1*r.At(0, 2)-c1*r.At(0, 1), c1*r.At(1, 1)-s1*r.At(1, 2))
	return Euler{X: t1, Y: t2, Z: t3}
}

// Compose is the inverse of Decompose.
func Compose(e Euler) mgl64.Mat3 {
	return mgl64.Rotate3DZ(e.Z).Mul3(mgl64.Rotate3DY(e.Y)).Mul3(mgl64.Rotate3DX(e.X))
}

// LevelRotation recomposes r with its Y angle inverted and doubled:
// R' = Rz(θ3)·Ry(−2θ2)·Rx(θ1).
//
// The −2 factor is an empirical leveling heuristic, not a standard transform.
// Keep it as is unless the experiment design changes.
func LevelRotation(r mgl64.Mat3) mgl64.Mat3 {
	e := Decompose(r)
	e.Y = -2 * e.Y
	return Compose(e)
}

// Level applies LevelRotation to the pose orientation and keeps the translation.
func Level(p Pose) Pose {
	r := LevelRotation(p.Rotation())
	return Pose{
		Position:    p.Position,
		Orientation: mgl64.Mat4ToQuat(r.Mat4()).Normalize(),
	}
}
