// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"log/slog"

	"github.com/gogpu/compositor/renderpass"
)

// DefaultMaxTextureSize is the texture limit reported for hardware
// surfaces.
const DefaultMaxTextureSize = 8192

// DelegatingRenderer hands frames to the owner of the GPU device instead
// of drawing them.
//
// The compositor never submits GPU commands itself. On a hardware
// surface the pass list of each frame is given, on swap, to the
// surface's Present callback, where the host draws it with its device or
// feeds it to a parent compositor as delegated content.
type DelegatingRenderer struct {
	surface *OutputSurface

	pending renderpass.List
	damage  image.Rectangle
}

// NewDelegatingRenderer creates a renderer for surface.
func NewDelegatingRenderer(surface *OutputSurface) (*DelegatingRenderer, error) {
	if surface == nil {
		return nil, ErrNilOutputSurface
	}
	slogger().Info("render: delegating renderer initialized",
		"adapter", surface.AdapterInfo().Name,
		"type", surface.AdapterInfo().Type.String())
	return &DelegatingRenderer{surface: surface}, nil
}

// SetLogger sets the logger for the render package.
func (r *DelegatingRenderer) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Capabilities returns the renderer's capabilities.
func (r *DelegatingRenderer) Capabilities() Capabilities {
	return Capabilities{
		BestTextureFormat: r.surface.Format(),
		MaxTextureSize:    DefaultMaxTextureSize,
		Delegating:        true,
	}
}

// DecideRenderPassAllocationsForFrame does nothing; the receiver owns
// pass contents.
func (r *DelegatingRenderer) DecideRenderPassAllocationsForFrame(renderpass.List) {}

// HaveCachedResourcesForRenderPassID always reports false.
func (r *DelegatingRenderer) HaveCachedResourcesForRenderPassID(renderpass.ID) bool {
	return false
}

// DrawFrame keeps passes until the next SwapBuffers. A frame that was
// drawn but never swapped is dropped and its copy requests aborted.
func (r *DelegatingRenderer) DrawFrame(passes renderpass.List, _ DrawParams) error {
	if r.surface.IsContextLost() {
		return ErrContextLost
	}
	abortCopies(r.pending)
	r.pending = passes
	if root := passes.Root(); root != nil {
		r.damage = root.DamageRect
	}
	return nil
}

// SwapBuffers delivers the pending frame to the surface.
func (r *DelegatingRenderer) SwapBuffers(meta FrameMetadata) bool {
	passes := r.pending
	r.pending = nil
	if r.surface.Present == nil || r.surface.IsContextLost() {
		abortCopies(passes)
		return r.surface.swap(Frame{Metadata: meta})
	}
	return r.surface.swap(Frame{Metadata: meta, Passes: passes, Damage: r.damage})
}

// Finish does nothing.
func (r *DelegatingRenderer) Finish() {}

// SetVisible does nothing.
func (r *DelegatingRenderer) SetVisible(bool) {}

// ViewportChanged does nothing.
func (r *DelegatingRenderer) ViewportChanged() {}

// IsContextLost reports whether the output surface lost its context.
func (r *DelegatingRenderer) IsContextLost() bool {
	return r.surface.IsContextLost()
}

func abortCopies(passes renderpass.List) {
	n := 0
	for _, p := range passes {
		for _, req := range p.CopyRequests {
			req.SendEmptyResult()
			n++
		}
		p.CopyRequests = nil
	}
	if n > 0 {
		slogger().Warn("render: copy requests aborted", "count", n)
	}
}

var (
	_ Renderer = (*DelegatingRenderer)(nil)
	_ Renderer = (*SoftwareRenderer)(nil)
)
