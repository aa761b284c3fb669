// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/renderpass"
)

// ErrNilOutputSurface is returned when a renderer is created without an
// output surface.
var ErrNilOutputSurface = errors.New("render: nil output surface")

// ErrContextLost is returned when drawing to a surface whose context
// was lost.
var ErrContextLost = errors.New("render: context lost")

// DeviceHandle provides GPU device access from the host application.
//
// The compositor never creates a device. The host owns it and passes it
// in through the OutputSurface, so frames produced here can be handed
// to whoever submits GPU work.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle without a GPU. Its adapter reports
// itself as software.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo describes a software adapter.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "null", Type: gpucontext.AdapterTypeSoftware}
}

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ DeviceHandle = NullDeviceHandle{}

// FrameMetadata describes the frame being swapped to the embedder.
type FrameMetadata struct {
	DeviceScaleFactor    float32
	RootScrollOffset     geom.Vector
	PageScaleFactor      float32
	MinPageScaleFactor   float32
	MaxPageScaleFactor   float32
	ViewportSize         image.Point
	RootLayerSize        image.Point
	LocationBarOffset    float32
	LocationBarContent   float32
	OverdrawBottomHeight float32
}

// Frame is what an output surface receives on swap.
type Frame struct {
	Metadata FrameMetadata
	// Image holds the composited pixels of a software frame.
	Image *image.RGBA
	// Passes holds the pass list of a delegated frame. The receiver owns
	// the passes and must complete their copy requests.
	Passes renderpass.List
	// Damage is the part of the frame that changed since the last swap.
	Damage image.Rectangle
}

// OutputSurface is where finished frames go.
//
// A surface without a Device, or whose adapter is a software adapter,
// draws in software. ForceResourceless selects software drawing without
// any GPU resources, the mode used for one-off draws into a caller's
// bitmap.
type OutputSurface struct {
	// Device is the host's GPU device, or nil.
	Device DeviceHandle
	// Target receives software frames. It is created on first draw when
	// nil and resized to the device viewport.
	Target *PixmapTarget
	// ForceResourceless draws without GPU resources.
	ForceResourceless bool
	// DrawFullViewportEveryFrame makes every frame draw and swap the
	// whole viewport, even without damage.
	DrawFullViewportEveryFrame bool
	// Present is called with every swapped frame.
	Present func(Frame)

	lost   atomic.Bool
	mu     sync.Mutex
	swaps  int
	onLost []func()
}

// NewOutputSurface returns a surface backed by device. A nil device
// yields a software surface.
func NewOutputSurface(device DeviceHandle) *OutputSurface {
	return &OutputSurface{Device: device}
}

// AdapterInfo returns the adapter of the device, or a software adapter
// when there is none.
func (s *OutputSurface) AdapterInfo() gpucontext.AdapterInfo {
	if s.Device == nil {
		return NullDeviceHandle{}.AdapterInfo()
	}
	return s.Device.AdapterInfo()
}

// DrawMode returns the mode frames for this surface are produced in.
func (s *OutputSurface) DrawMode() DrawMode {
	switch {
	case s.ForceResourceless:
		return DrawModeResourcelessSoftware
	case s.Device == nil, s.AdapterInfo().Type == gpucontext.AdapterTypeSoftware:
		return DrawModeSoftware
	default:
		return DrawModeHardware
	}
}

// Format returns the texture format of the surface.
func (s *OutputSurface) Format() gputypes.TextureFormat {
	if s.Device != nil {
		if f := s.Device.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			return f
		}
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// LoseContext marks the surface's context as lost and runs the callbacks
// registered with OnContextLost. Later calls do nothing.
func (s *OutputSurface) LoseContext() {
	if s.lost.Swap(true) {
		return
	}
	s.mu.Lock()
	fns := s.onLost
	s.mu.Unlock()
	slogger().Warn("render: output surface context lost", "adapter", s.AdapterInfo().Name)
	for _, fn := range fns {
		fn()
	}
}

// IsContextLost reports whether LoseContext was called.
func (s *OutputSurface) IsContextLost() bool {
	return s.lost.Load()
}

// OnContextLost registers fn to run when the context is lost.
func (s *OutputSurface) OnContextLost(fn func()) {
	s.mu.Lock()
	s.onLost = append(s.onLost, fn)
	s.mu.Unlock()
}

// SwapCount returns the number of frames presented.
func (s *OutputSurface) SwapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swaps
}

// swap presents f. It fails once the context is lost.
func (s *OutputSurface) swap(f Frame) bool {
	if s.IsContextLost() {
		return false
	}
	s.mu.Lock()
	s.swaps++
	s.mu.Unlock()
	if s.Present != nil {
		s.Present(f)
	}
	return true
}
