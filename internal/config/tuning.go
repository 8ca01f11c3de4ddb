package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for lane tracking parameters.
// Every field is optional; the Get* accessors fall back to the calibrated
// defaults for a 1280x720 bird's-eye image and a 3.7 m lane.
type TuningConfig struct {
	// Sliding-window search
	SlidingWindows    *int `json:"sliding_windows,omitempty"`
	WindowMarginPx    *int `json:"window_margin_px,omitempty"`
	MinRecenterPixels *int `json:"min_recenter_pixels,omitempty"`

	// Local search around the prior fit
	LocalMarginPx *int `json:"local_margin_px,omitempty"`

	// Physical calibration
	LaneWidthMeters *float64 `json:"lane_width_meters,omitempty"`
	MetersPerRow    *float64 `json:"meters_per_row,omitempty"`
	StraightEpsilon *float64 `json:"straight_epsilon,omitempty"`

	// Expected mask geometry; only an explicit zero disables the check
	ImageWidth  *int `json:"image_width,omitempty"`
	ImageHeight *int `json:"image_height,omitempty"`

	// Temporal behaviour
	SmoothingHistorySize *int  `json:"smoothing_history_size,omitempty"`
	MaxStaleFrames       *int  `json:"max_stale_frames,omitempty"`
	RetryBlindOnStale    *bool `json:"retry_blind_on_stale,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in fallbacks.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		SlidingWindows:       ptrInt(empty.GetSlidingWindows()),
		WindowMarginPx:       ptrInt(empty.GetWindowMarginPx()),
		MinRecenterPixels:    ptrInt(empty.GetMinRecenterPixels()),
		LocalMarginPx:        ptrInt(empty.GetLocalMarginPx()),
		LaneWidthMeters:      ptrFloat64(empty.GetLaneWidthMeters()),
		MetersPerRow:         ptrFloat64(empty.GetMetersPerRow()),
		StraightEpsilon:      ptrFloat64(empty.GetStraightEpsilon()),
		ImageWidth:           ptrInt(empty.GetImageWidth()),
		ImageHeight:          ptrInt(empty.GetImageHeight()),
		SmoothingHistorySize: ptrInt(empty.GetSmoothingHistorySize()),
		MaxStaleFrames:       ptrInt(empty.GetMaxStaleFrames()),
		RetryBlindOnStale:    ptrBool(empty.GetRetryBlindOnStale()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lane/monitor/
		"../../../../" + DefaultConfigPath, // from internal/lane/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SlidingWindows != nil && *c.SlidingWindows < 1 {
		return fmt.Errorf("sliding_windows must be at least 1, got %d", *c.SlidingWindows)
	}
	if c.WindowMarginPx != nil && *c.WindowMarginPx < 1 {
		return fmt.Errorf("window_margin_px must be positive, got %d", *c.WindowMarginPx)
	}
	if c.MinRecenterPixels != nil && *c.MinRecenterPixels < 1 {
		return fmt.Errorf("min_recenter_pixels must be positive, got %d", *c.MinRecenterPixels)
	}
	if c.LocalMarginPx != nil && *c.LocalMarginPx < 1 {
		return fmt.Errorf("local_margin_px must be positive, got %d", *c.LocalMarginPx)
	}
	if c.LaneWidthMeters != nil && *c.LaneWidthMeters <= 0 {
		return fmt.Errorf("lane_width_meters must be positive, got %f", *c.LaneWidthMeters)
	}
	if c.MetersPerRow != nil && *c.MetersPerRow <= 0 {
		return fmt.Errorf("meters_per_row must be positive, got %f", *c.MetersPerRow)
	}
	if c.StraightEpsilon != nil && *c.StraightEpsilon < 0 {
		return fmt.Errorf("straight_epsilon must be non-negative, got %g", *c.StraightEpsilon)
	}
	if c.ImageWidth != nil && *c.ImageWidth < 0 {
		return fmt.Errorf("image_width must be non-negative, got %d", *c.ImageWidth)
	}
	if c.ImageHeight != nil && *c.ImageHeight < 0 {
		return fmt.Errorf("image_height must be non-negative, got %d", *c.ImageHeight)
	}
	if c.SmoothingHistorySize != nil && *c.SmoothingHistorySize < 1 {
		return fmt.Errorf("smoothing_history_size must be at least 1, got %d", *c.SmoothingHistorySize)
	}
	if c.MaxStaleFrames != nil && *c.MaxStaleFrames < 0 {
		return fmt.Errorf("max_stale_frames must be non-negative, got %d", *c.MaxStaleFrames)
	}
	return nil
}

// GetSlidingWindows returns the sliding_windows value or the default.
func (c *TuningConfig) GetSlidingWindows() int {
	if c.SlidingWindows == nil {
		return 9
	}
	return *c.SlidingWindows
}

// GetWindowMarginPx returns the window_margin_px value or the default.
func (c *TuningConfig) GetWindowMarginPx() int {
	if c.WindowMarginPx == nil {
		return 100
	}
	return *c.WindowMarginPx
}

// GetMinRecenterPixels returns the min_recenter_pixels value or the default.
func (c *TuningConfig) GetMinRecenterPixels() int {
	if c.MinRecenterPixels == nil {
		return 50
	}
	return *c.MinRecenterPixels
}

// GetLocalMarginPx returns the local_margin_px value or the default.
func (c *TuningConfig) GetLocalMarginPx() int {
	if c.LocalMarginPx == nil {
		return 100
	}
	return *c.LocalMarginPx
}

// GetLaneWidthMeters returns the lane_width_meters value or the default.
func (c *TuningConfig) GetLaneWidthMeters() float64 {
	if c.LaneWidthMeters == nil {
		return 3.7 // US standard lane
	}
	return *c.LaneWidthMeters
}

// GetMetersPerRow returns the meters_per_row value or the default.
func (c *TuningConfig) GetMetersPerRow() float64 {
	if c.MetersPerRow == nil {
		return 30.0 / 720.0 // 30 m over a 720-row warped image
	}
	return *c.MetersPerRow
}

// GetStraightEpsilon returns the straight_epsilon value or the default.
func (c *TuningConfig) GetStraightEpsilon() float64 {
	if c.StraightEpsilon == nil {
		return 1e-9
	}
	return *c.StraightEpsilon
}

// GetImageWidth returns the image_width value or the default.
func (c *TuningConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return 1280
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image_height value or the default.
func (c *TuningConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return 720 // meters_per_row is calibrated for this height
	}
	return *c.ImageHeight
}

// GetSmoothingHistorySize returns the smoothing_history_size value or the default.
func (c *TuningConfig) GetSmoothingHistorySize() int {
	if c.SmoothingHistorySize == nil {
		return 3
	}
	return *c.SmoothingHistorySize
}

// GetMaxStaleFrames returns the max_stale_frames value or the default.
func (c *TuningConfig) GetMaxStaleFrames() int {
	if c.MaxStaleFrames == nil {
		return 0 // never re-acquire automatically
	}
	return *c.MaxStaleFrames
}

// GetRetryBlindOnStale returns the retry_blind_on_stale value or the default.
func (c *TuningConfig) GetRetryBlindOnStale() bool {
	if c.RetryBlindOnStale == nil {
		return false
	}
	return *c.RetryBlindOnStale
}
