// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// PixmapTarget is the CPU frame buffer of a software output surface.
//
// Its contents persist between frames, which is what lets the software
// renderer redraw only the damaged part of the root pass.
//
//	surface := render.NewOutputSurface(nil)
//	surface.Target = render.NewPixmapTarget(800, 600)
//	// ... draw and swap frames ...
//	img := surface.Target.Image()
type PixmapTarget struct {
	img *image.RGBA
}

// NewPixmapTarget creates a width x height target cleared to transparent.
func NewPixmapTarget(width, height int) *PixmapTarget {
	return &PixmapTarget{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Size returns the target size in pixels.
func (t *PixmapTarget) Size() image.Point { return t.img.Bounds().Size() }

// Image returns the frame buffer. It shares memory with the target.
func (t *PixmapTarget) Image() *image.RGBA { return t.img }

// Clear fills the whole target with c.
func (t *PixmapTarget) Clear(c color.Color) {
	xdraw.Draw(t.img, t.img.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
}

// Resize replaces the buffer with one of the given size. The contents
// are not preserved.
func (t *PixmapTarget) Resize(width, height int) {
	t.img = image.NewRGBA(image.Rect(0, 0, width, height))
}
