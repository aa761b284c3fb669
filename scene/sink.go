package scene

import (
	"github.com/gogpu/compositor/renderpass"
	"github.com/gogpu/compositor/tile"
)

// QuadSink receives the quads a layer or surface emits into its target
// pass. Implementations may drop or shrink quads, e.g. when occluded.
type QuadSink interface {
	// CreateSharedQuadState allocates a shared state in the target pass.
	CreateSharedQuadState() *renderpass.SharedQuadState
	// Append adds q to the target pass and reports whether it was kept.
	Append(q *renderpass.DrawQuad, data *AppendQuadsData) bool
}

// AppendQuadsData collects per-layer facts observed while emitting quads.
type AppendQuadsData struct {
	// RenderPassID is the pass quads are appended to.
	RenderPassID renderpass.ID

	NumMissingTiles                      int
	HadIncompleteTile                    bool
	HadOcclusionFromOutsideTargetSurface bool
}

// UIResourceID names a UI resource registered with the compositor.
type UIResourceID int

// ResourceLookup resolves the resources layers sample from.
type ResourceLookup interface {
	// Contains reports whether a tile resource is live.
	Contains(id tile.ResourceID) bool
	// ResourceForUIResource maps a UI resource to its texture, or 0.
	ResourceForUIResource(uid UIResourceID) tile.ResourceID
}
