// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/renderpass"
)

// Renderer draws render pass lists produced by the compositor.
//
// Passes are handed over leaf first; the last pass is the root and
// draws into the output surface. A renderer is used from the goroutine
// that drives the compositor.
type Renderer interface {
	// Capabilities describes what the renderer supports.
	Capabilities() Capabilities

	// DecideRenderPassAllocationsForFrame releases cached pass contents
	// that the upcoming frame no longer refers to.
	DecideRenderPassAllocationsForFrame(passes renderpass.List)

	// HaveCachedResourcesForRenderPassID reports whether the complete
	// output of pass id is cached from a previous frame, so the pass may
	// be skipped when its contents did not change.
	HaveCachedResourcesForRenderPassID(id renderpass.ID) bool

	// DrawFrame draws passes. Copy requests carried by the passes are
	// completed before it returns.
	DrawFrame(passes renderpass.List, params DrawParams) error

	// SwapBuffers presents the last drawn frame. It reports false when
	// the frame could not be presented.
	SwapBuffers(meta FrameMetadata) bool

	// Finish blocks until all drawing has completed.
	Finish()

	// SetVisible tells the renderer whether its output is shown.
	SetVisible(visible bool)

	// ViewportChanged signals that the device viewport changed size.
	ViewportChanged()

	// IsContextLost reports whether the output surface lost its context.
	IsContextLost() bool
}

// DrawParams are the per-frame inputs to DrawFrame.
type DrawParams struct {
	// DeviceViewport is the root output rect in device pixels.
	DeviceViewport image.Rectangle
	// DeviceClip limits drawing of the root pass. Empty means the whole
	// viewport.
	DeviceClip        image.Rectangle
	DeviceScaleFactor float32
	// AllowPartialSwap lets the root pass redraw only its damage rect.
	AllowPartialSwap bool
	// DisableImageFiltering samples textures with nearest neighbour.
	DisableImageFiltering bool
}

// Capabilities describes the features supported by a renderer.
type Capabilities struct {
	// BestTextureFormat is the format tile resources should use.
	BestTextureFormat gputypes.TextureFormat

	// MaxTextureSize is the maximum texture dimension (0 = unlimited).
	MaxTextureSize int

	// UsingPartialSwap means only the damaged part of the root pass is
	// redrawn each frame.
	UsingPartialSwap bool

	// UsingSetVisibility means the renderer drops resources when hidden.
	UsingSetVisibility bool

	// AllowPartialTextureUpdates means tiles may be rastered in place.
	AllowPartialTextureUpdates bool

	// Delegating renderers hand frames to the device owner instead of
	// drawing them.
	Delegating bool
}
