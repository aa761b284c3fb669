// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render turns the compositor's render pass lists into frames.
//
// # Key Principle
//
// The compositor RECEIVES a GPU device from the host application, it does
// NOT create its own. The device reaches it through an OutputSurface,
// whose adapter decides the draw mode:
//
//   - no device, or a software adapter: DrawModeSoftware
//   - a hardware adapter: DrawModeHardware
//   - OutputSurface.ForceResourceless: DrawModeResourcelessSoftware
//
// # Renderers
//
//   - SoftwareRenderer composites quads on the CPU into a PixmapTarget,
//     caching the contents of non-root passes between frames.
//   - DelegatingRenderer hands the pass list to the device owner on swap.
//
// # Usage
//
//	surface := render.NewOutputSurface(nil)
//	surface.Present = func(f render.Frame) {
//	    // f.Image holds the composited pixels, f.Damage what changed.
//	}
//	r, err := render.NewSoftwareRenderer(surface, pool)
//	if err != nil {
//	    return err
//	}
//
// Frame flow:
//
//	compositor.Host ──passes──▶ Renderer.DrawFrame ──▶ Renderer.SwapBuffers
//	                                                        │
//	                                                        ▼
//	                                           OutputSurface.Present(Frame)
//
// # Thread Safety
//
// Renderers are NOT thread-safe. They are driven from the goroutine that
// drives the compositor.
package render
