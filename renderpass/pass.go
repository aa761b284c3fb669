package renderpass

import (
	"fmt"
	"image"

	"github.com/gogpu/compositor/geom"
)

// ID names a render pass by the layer that owns the render surface and
// an index distinguishing several passes contributed by one layer.
type ID struct {
	LayerID int
	Index   int
}

func (id ID) String() string {
	return fmt.Sprintf("pass(%d.%d)", id.LayerID, id.Index)
}

// Pass is an ordered list of quads drawn into one render surface.
// Quads are stored front to back: Quads[0] is the topmost.
type Pass struct {
	ID ID

	// OutputRect is the surface content rect in target space.
	OutputRect image.Rectangle
	// DamageRect is the part of OutputRect that must be redrawn.
	DamageRect image.Rectangle

	TransformToRootTarget geom.Transform

	HasTransparentBackground             bool
	HasOcclusionFromOutsideTargetSurface bool

	SharedQuadStates []*SharedQuadState
	Quads            []*DrawQuad
	CopyRequests     []*CopyOutputRequest
}

// New creates an empty pass with a transparent background.
func New(id ID, output, damage image.Rectangle, toRoot geom.Transform) *Pass {
	return &Pass{
		ID:                       id,
		OutputRect:               output,
		DamageRect:               damage,
		TransformToRootTarget:    toRoot,
		HasTransparentBackground: true,
	}
}

// CreateSharedQuadState appends a shared state owned by this pass.
func (p *Pass) CreateSharedQuadState() *SharedQuadState {
	s := &SharedQuadState{Opacity: 1, ContentToTargetTransform: geom.Identity()}
	p.SharedQuadStates = append(p.SharedQuadStates, s)
	return s
}

// Append adds q behind every quad already in the pass.
func (p *Pass) Append(q *DrawQuad) {
	p.Quads = append(p.Quads, q)
}

// Copy returns a quad-less copy of p under a new id. Copy requests are
// not carried over.
func (p *Pass) Copy(id ID) *Pass {
	c := New(id, p.OutputRect, p.DamageRect, p.TransformToRootTarget)
	c.HasTransparentBackground = p.HasTransparentBackground
	c.HasOcclusionFromOutsideTargetSurface = p.HasOcclusionFromOutsideTargetSurface
	return c
}

// List is a dependency-ordered pass list: every pass appears after all
// passes it consumes, and the root pass is last.
type List []*Pass

// Root returns the last pass, or nil for an empty list.
func (l List) Root() *Pass {
	if len(l) == 0 {
		return nil
	}
	return l[len(l)-1]
}

// Index returns the position of the pass with the given id, or -1.
func (l List) Index(id ID) int {
	for i, p := range l {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// QuadCount returns the total number of quads in all passes.
func (l List) QuadCount() int {
	n := 0
	for _, p := range l {
		n += len(p.Quads)
	}
	return n
}

// Map indexes passes by id.
type Map map[ID]*Pass
