package simhmd

import (
	"context"
	"sync"

	"hmdlag/internal/frame"
)

// Renderer is a frame.SceneRenderer that draws nothing and remembers what
// it was asked to draw.
type Renderer struct {
	record int

	mu      sync.Mutex
	counts  [2]uint64
	renders []frame.EyeRender
}

var _ frame.SceneRenderer = (*Renderer)(nil)

// NewRenderer keeps the last record calls; 0 only counts them.
func NewRenderer(record int) *Renderer {
	return &Renderer{record: record}
}

func (r *Renderer) RenderEye(ctx context.Context, er frame.EyeRender) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[er.View.Target]++
	if r.record > 0 {
		if len(r.renders) == r.record {
			copy(r.renders, r.renders[1:])
			r.renders = r.renders[:len(r.renders)-1]
		}
		r.renders = append(r.renders, er)
	}
	return nil
}

// Counts is the number of draws per physical target.
func (r *Renderer) Counts() [2]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

func (r *Renderer) Renders() []frame.EyeRender {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame.EyeRender(nil), r.renders...)
}
