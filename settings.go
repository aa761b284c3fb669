package compositor

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/compositor/occlusion"
	"github.com/gogpu/compositor/tile"
)

// Settings holds the tunables of a Host. The zero value is not useful;
// start from DefaultSettings.
type Settings struct {
	// ImplSidePainting commits into a pending tree that is activated once
	// its tiles are ready. Without it commits go straight to the active
	// tree.
	ImplSidePainting bool `toml:"impl_side_painting"`

	// AcceleratedAnimations lets the compositor run layer opacity and
	// transform animations itself.
	AcceleratedAnimations bool `toml:"accelerated_animations"`

	// AlwaysOverscroll makes a scroll that hits no scrollable layer scroll
	// the root scroll layer, so it can report overscroll.
	AlwaysOverscroll bool `toml:"always_overscroll"`

	// IgnoreRootLayerFlings ignores flings that start on the root scroll
	// layer.
	IgnoreRootLayerFlings bool `toml:"ignore_root_layer_flings"`

	// AllowPartialSwap lets the renderer redraw only the damaged part of
	// the root pass.
	AllowPartialSwap bool `toml:"allow_partial_swap"`

	// ShowOccludingRects records occluding and non-occluding screen rects
	// in every frame.
	ShowOccludingRects bool `toml:"show_occluding_rects"`

	// RasterizeOnlyVisibleContent restricts memory to required tiles while
	// visible and to nothing while hidden.
	RasterizeOnlyVisibleContent bool `toml:"rasterize_only_visible_content"`

	// ScrollAngleThreshold is the angle in degrees under which a delta
	// applied by a layer is considered to have consumed the whole
	// pending delta.
	ScrollAngleThreshold float32 `toml:"scroll_angle_threshold"`

	// ScrollMoveThreshold is the smallest per-axis movement in pixels
	// that counts as having scrolled.
	ScrollMoveThreshold float32 `toml:"scroll_move_threshold"`

	// PageScrollFraction is the share of the scrollbar height scrolled by
	// ScrollVerticallyByPage.
	PageScrollFraction float32 `toml:"page_scroll_fraction"`

	// TopControlsHeight is the height of the top controls in layout
	// pixels. Zero disables them.
	TopControlsHeight float32 `toml:"top_controls_height"`

	// TopControlsShowThreshold and TopControlsHideThreshold are the
	// visible fractions past which released controls animate fully shown
	// or hidden.
	TopControlsShowThreshold float32 `toml:"top_controls_show_threshold"`
	TopControlsHideThreshold float32 `toml:"top_controls_hide_threshold"`

	// MinimumOcclusionTrackingSize is the smallest opaque rect that
	// occludes.
	MinimumOcclusionTrackingSize image.Point `toml:"minimum_occlusion_tracking_size"`

	// MemoryStatsRounding rounds memory stats up before they are sent so
	// small changes do not cause a message every frame.
	MemoryStatsRounding int64 `toml:"memory_stats_rounding"`

	// MaxUnusedResourceMemoryPercentage bounds memory held by unused
	// resources as a percentage of the budget.
	MaxUnusedResourceMemoryPercentage int64 `toml:"max_unused_resource_memory_percentage"`

	// TileSize is the edge of a tile in content pixels.
	TileSize int `toml:"tile_size"`

	// PrepaintDistance is how far outside the viewport tiles are
	// rasterized ahead of time.
	PrepaintDistance int `toml:"prepaint_distance"`

	// MemoryPolicy is the budget used until the embedder sends one.
	MemoryPolicy tile.ManagedMemoryPolicy `toml:"memory_policy"`
}

// DefaultSettings returns the settings a Host uses when given none.
func DefaultSettings() Settings {
	return Settings{
		AcceleratedAnimations:             true,
		AllowPartialSwap:                  true,
		ScrollAngleThreshold:              45,
		ScrollMoveThreshold:               0.1,
		PageScrollFraction:                0.875,
		TopControlsShowThreshold:          0.5,
		TopControlsHideThreshold:          0.5,
		MinimumOcclusionTrackingSize:      occlusion.DefaultMinimumTrackingSize,
		MemoryStatsRounding:               8 << 20,
		MaxUnusedResourceMemoryPercentage: 100,
		TileSize:                          tile.DefaultTileSize,
		PrepaintDistance:                  tile.DefaultPrepaintDistance,
		MemoryPolicy:                      tile.DefaultManagedMemoryPolicy(tile.DefaultMemoryLimitBytes),
	}
}

// ParseSettings decodes TOML into a copy of DefaultSettings. Unknown keys
// are an error.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("compositor: parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a TOML settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("compositor: load settings: %w", err)
	}
	return ParseSettings(data)
}

// Validate reports settings that cannot work.
func (s Settings) Validate() error {
	switch {
	case s.TileSize <= 0:
		return fmt.Errorf("compositor: tile size %d must be positive", s.TileSize)
	case s.PrepaintDistance < 0:
		return fmt.Errorf("compositor: prepaint distance %d must not be negative", s.PrepaintDistance)
	case s.ScrollAngleThreshold <= 0 || s.ScrollAngleThreshold > 90:
		return fmt.Errorf("compositor: scroll angle threshold %g out of (0, 90]", s.ScrollAngleThreshold)
	case s.ScrollMoveThreshold < 0:
		return fmt.Errorf("compositor: scroll move threshold %g must not be negative", s.ScrollMoveThreshold)
	case s.TopControlsHeight < 0:
		return fmt.Errorf("compositor: top controls height %g must not be negative", s.TopControlsHeight)
	case s.MemoryStatsRounding < 0:
		return fmt.Errorf("compositor: memory stats rounding %d must not be negative", s.MemoryStatsRounding)
	}
	return nil
}
