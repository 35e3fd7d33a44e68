package frame

import (
	"github.com/go-gl/mathgl/mgl64"

	"hmdlag/internal/pose"
)

// Resolution is the resolver output for one frame.
type Resolution struct {
	// Eyes holds the per logical eye poses after the freeze policy,
	// before leveling. They become the next frame's previous poses.
	Eyes [2]pose.Pose
	// Views is indexed by physical target.
	Views [2]EyeView
	Drawn [2]bool
}

// SubmitPoses is the pose each physical target was rendered with.
func (r Resolution) SubmitPoses() [2]pose.Pose {
	return [2]pose.Pose{r.Views[LeftEye].Pose, r.Views[RightEye].Pose}
}

// Resolver applies freeze mode, eye routing and optional leveling to a
// sample and remembers the result for the next frame's freeze logic.
type Resolver struct {
	prev    [2]pose.Pose
	hasPrev bool
}

// Resolve produces the views for one frame. With no previous frame yet the
// freeze modes behave as Live.
func (r *Resolver) Resolve(poses [2]pose.Pose, proj [2]mgl64.Mat4, freeze FreezeMode, mode EyeRenderMode, level bool) Resolution {
	if !r.hasPrev {
		r.prev = poses
		r.hasPrev = true
	}

	var out Resolution
	for e := range out.Eyes {
		out.Eyes[e] = applyFreeze(poses[e], r.prev[e], freeze)
	}
	r.prev = out.Eyes

	src, draw := mode.Route()
	out.Drawn = draw
	for t := range out.Views {
		s := src[t]
		p := out.Eyes[s]
		if level {
			p = pose.Level(p)
		}
		out.Views[t] = EyeView{
			Target:     Eye(t),
			Source:     s,
			Projection: proj[s],
			Pose:       p,
			View:       p.View(),
		}
	}
	return out
}

// Previous returns the poses the next Resolve will freeze against.
func (r *Resolver) Previous() ([2]pose.Pose, bool) { return r.prev, r.hasPrev }

func applyFreeze(cur, prev pose.Pose, m FreezeMode) pose.Pose {
	switch m {
	case FreezePosition:
		return cur.WithPosition(prev.Position)
	case FreezeOrientation:
		return cur.WithOrientation(prev.Orientation)
	case FreezeBoth:
		return prev
	default:
		return cur
	}
}
