// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// DrawMode selects how a frame is produced.
type DrawMode int

const (
	// DrawModeHardware draws with the output surface's GPU device.
	DrawModeHardware DrawMode = iota

	// DrawModeSoftware draws into CPU memory with full resources.
	DrawModeSoftware

	// DrawModeResourcelessSoftware draws into CPU memory without any
	// GPU resources. Layers that only exist as textures are skipped.
	DrawModeResourcelessSoftware
)

// String returns the mode name.
func (m DrawMode) String() string {
	switch m {
	case DrawModeHardware:
		return "Hardware"
	case DrawModeSoftware:
		return "Software"
	case DrawModeResourcelessSoftware:
		return "ResourcelessSoftware"
	default:
		return "Unknown"
	}
}
