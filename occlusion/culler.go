package occlusion

import (
	"github.com/gogpu/compositor/renderpass"
	"github.com/gogpu/compositor/scene"
)

// QuadCuller appends quads to a pass, trimming each to its unoccluded
// part and dropping quads that are hidden entirely.
type QuadCuller struct {
	pass    *renderpass.Pass
	tracker *Tracker
	target  *scene.Layer

	// Culled counts dropped quads.
	Culled int
}

// NewQuadCuller returns a sink appending to pass, which draws the surface
// owned by target.
func NewQuadCuller(pass *renderpass.Pass, tracker *Tracker, target *scene.Layer) *QuadCuller {
	return &QuadCuller{pass: pass, tracker: tracker, target: target}
}

// CreateSharedQuadState allocates a shared state in the pass.
func (c *QuadCuller) CreateSharedQuadState() *renderpass.SharedQuadState {
	return c.pass.CreateSharedQuadState()
}

// Append adds q unless it is fully occluded.
func (c *QuadCuller) Append(q *renderpass.DrawQuad, data *scene.AppendQuadsData) bool {
	r := q.TargetRect()
	unoccluded, fromOutside := c.tracker.UnoccludedRect(c.target, r)
	if fromOutside {
		data.HadOcclusionFromOutsideTargetSurface = true
	}
	if unoccluded.Empty() {
		c.Culled++
		return false
	}
	if unoccluded != r {
		tr := q.Shared.ContentToTargetTransform
		if inv, ok := tr.Inverse(); ok && tr.PreservesAxisAlignment() {
			if v := inv.MapEnclosingRect(unoccluded).Intersect(q.Rect); !v.Empty() {
				q.VisibleRect = v
			}
		}
	}
	c.pass.Append(q)
	return true
}
