package lane

import (
	"fmt"
	"math"

	"github.com/banshee-data/lanetrack/internal/config"
)

// TrackMode is the search mode the tracker is in.
type TrackMode int

const (
	ModeUninitialized TrackMode = iota // no fit yet; next frame runs the window search
	ModeTracking                       // holds a fit pair; next frame runs the local search
)

func (m TrackMode) String() string {
	switch m {
	case ModeUninitialized:
		return "uninitialized"
	case ModeTracking:
		return "tracking"
	default:
		return fmt.Sprintf("TrackMode(%d)", int(m))
	}
}

// FrameStatus discriminates the outcome of one Detect call.
type FrameStatus string

const (
	FrameAcquired FrameStatus = "acquired" // blind search produced the first (or a fresh) fit
	FrameTracked  FrameStatus = "tracked"  // local search updated the fit
	FrameStale    FrameStatus = "stale"    // search failed; previous geometry reported
	// FrameFailed is never carried by a Detect result: Detect returns a nil
	// result and an ErrDetectionFailed error instead. Consumers that record
	// every frame (run storage, reports) use it for those frames.
	FrameFailed FrameStatus = "failed"
)

// TrackerConfig holds construction-time parameters for the tracker.
type TrackerConfig struct {
	// Window search
	Windows           int // number of stacked windows
	WindowMargin      int // window half-width (px)
	MinRecenterPixels int // pixels in a window needed to recentre the next

	// Local search
	LocalMargin int // half-width of the band around the prior fit (px)

	// Physical calibration
	LaneWidthMeters float64
	MetersPerRow    float64
	StraightEpsilon float64

	// Expected mask size; zero disables the check for that dimension.
	// TrackerConfigFromTuning only yields zero when the file says so.
	ImageWidth  int
	ImageHeight int

	// Temporal behaviour
	SmoothingHistorySize int
	MaxStaleFrames       int  // consecutive stale frames before re-acquisition; 0 never
	RetryBlindOnStale    bool // retry a window search in the same frame when local search fails
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	cfg := config.MustLoadDefaultConfig()
	return TrackerConfigFromTuning(cfg)
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		Windows:              cfg.GetSlidingWindows(),
		WindowMargin:         cfg.GetWindowMarginPx(),
		MinRecenterPixels:    cfg.GetMinRecenterPixels(),
		LocalMargin:          cfg.GetLocalMarginPx(),
		LaneWidthMeters:      cfg.GetLaneWidthMeters(),
		MetersPerRow:         cfg.GetMetersPerRow(),
		StraightEpsilon:      cfg.GetStraightEpsilon(),
		ImageWidth:           cfg.GetImageWidth(),
		ImageHeight:          cfg.GetImageHeight(),
		SmoothingHistorySize: cfg.GetSmoothingHistorySize(),
		MaxStaleFrames:       cfg.GetMaxStaleFrames(),
		RetryBlindOnStale:    cfg.GetRetryBlindOnStale(),
	}
}

// Validate checks if the configuration is valid.
func (c TrackerConfig) Validate() error {
	if c.Windows < 1 {
		return fmt.Errorf("Windows must be at least 1, got %d", c.Windows)
	}
	if c.WindowMargin < 1 {
		return fmt.Errorf("WindowMargin must be positive, got %d", c.WindowMargin)
	}
	if c.MinRecenterPixels < 1 {
		return fmt.Errorf("MinRecenterPixels must be positive, got %d", c.MinRecenterPixels)
	}
	if c.LocalMargin < 1 {
		return fmt.Errorf("LocalMargin must be positive, got %d", c.LocalMargin)
	}
	if !(c.LaneWidthMeters > 0) || math.IsInf(c.LaneWidthMeters, 0) {
		return fmt.Errorf("LaneWidthMeters must be positive, got %f", c.LaneWidthMeters)
	}
	if !(c.MetersPerRow > 0) || math.IsInf(c.MetersPerRow, 0) {
		return fmt.Errorf("MetersPerRow must be positive, got %f", c.MetersPerRow)
	}
	if c.StraightEpsilon < 0 {
		return fmt.Errorf("StraightEpsilon must be non-negative, got %g", c.StraightEpsilon)
	}
	if c.ImageWidth < 0 || c.ImageHeight < 0 {
		return fmt.Errorf("image size must be non-negative, got %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.SmoothingHistorySize < 1 {
		return fmt.Errorf("SmoothingHistorySize must be at least 1, got %d", c.SmoothingHistorySize)
	}
	if c.MaxStaleFrames < 0 {
		return fmt.Errorf("MaxStaleFrames must be non-negative, got %d", c.MaxStaleFrames)
	}
	return nil
}

// laneState is the tagged mode variant. fits is meaningful only while
// mode == ModeTracking.
type laneState struct {
	mode TrackMode
	fits FitPair
}

// FrameResult is the outcome of one Detect call.
type FrameResult struct {
	Frame  int64       // 1-based frame counter value for this call
	Status FrameStatus // how the geometry was obtained
	Mode   TrackMode   // mode after this frame

	Fits         FitPair      // fits in force after this frame
	LeftCluster  PixelCluster // pixels used this frame; empty when stale
	RightCluster PixelCluster
	Windows      *WindowTrace // set when a window search ran successfully

	Curvature            CurvatureResult // raw geometry of the fits in force
	SmoothedLeftRadiusM  float64         // mean of the retained left radii
	SmoothedRightRadiusM float64         // mean of the retained right radii

	// StaleFrames counts consecutive frames that reused previous geometry,
	// including this one. Zero on fresh frames.
	StaleFrames int
	// StaleCause is the search or fit error that made this frame stale.
	StaleCause error
	// Reacquire is true when this frame hit MaxStaleFrames and the tracker
	// dropped back to window search for the next frame.
	Reacquire bool
}

// Tracker is the cross-frame lane boundary tracker. It is not safe for
// concurrent use: one owner calls Detect in frame order.
type Tracker struct {
	Config TrackerConfig

	window    WindowSearchDetector
	local     LocalSearchDetector
	fitter    PolynomialFitter
	estimator CurvatureEstimator

	state         laneState
	leftHistory   *RadiusHistory
	rightHistory  *RadiusHistory
	lastCurvature CurvatureResult
	frames        int64
	staleFrames   int
}

// NewTracker creates a tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	return &Tracker{
		Config: cfg,
		window: WindowSearchDetector{
			Windows: cfg.Windows,
			Margin:  cfg.WindowMargin,
			MinPix:  cfg.MinRecenterPixels,
		},
		local: LocalSearchDetector{Margin: cfg.LocalMargin},
		estimator: CurvatureEstimator{
			LaneWidthMeters: cfg.LaneWidthMeters,
			MetersPerRow:    cfg.MetersPerRow,
			StraightEpsilon: cfg.StraightEpsilon,
		},
		leftHistory:  NewRadiusHistory(cfg.SmoothingHistorySize),
		rightHistory: NewRadiusHistory(cfg.SmoothingHistorySize),
	}, nil
}

// Mode returns the current search mode.
func (t *Tracker) Mode() TrackMode { return t.state.mode }

// FrameCount returns the number of Detect calls since construction or Reset.
func (t *Tracker) FrameCount() int64 { return t.frames }

// Fits returns the fit pair in force and false when uninitialized.
func (t *Tracker) Fits() (FitPair, bool) {
	if t.state.mode != ModeTracking {
		return FitPair{}, false
	}
	return t.state.fits, true
}

// Reset returns the tracker to ModeUninitialized and clears fits, curvature
// history and counters.
func (t *Tracker) Reset() {
	t.state = laneState{mode: ModeUninitialized}
	t.leftHistory.Reset()
	t.rightHistory.Reset()
	t.lastCurvature = CurvatureResult{}
	t.frames = 0
	t.staleFrames = 0
}

// frameFit is the product of one successful search+fit+estimate pass.
type frameFit struct {
	fits        FitPair
	left, right PixelCluster
	curvature   CurvatureResult
	trace       *WindowTrace
}

// Detect processes one mask.
//
// In ModeUninitialized it runs the window search; failure there returns a
// nil result and an error wrapping ErrDetectionFailed, and leaves the
// tracker uninitialized. Callers record such frames as FrameFailed.
// In ModeTracking it runs the local search around the previous fit; failure
// keeps the previous fit and returns a FrameStale result with a nil error.
// A mask that does not match the configured geometry returns an error
// wrapping ErrGeometryMismatch without touching any state.
func (t *Tracker) Detect(mask *BinaryMask) (res *FrameResult, err error) {
	if err := t.checkGeometry(mask); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			Opsf("frame %d: recovered from fault: %v", t.frames, r)
			res = nil
			err = fmt.Errorf("%w: internal fault: %v", ErrDetectionFailed, r)
		}
	}()

	t.frames++

	// Step 1: blind acquisition when there is no fit to follow
	if t.state.mode == ModeUninitialized {
		ff, err := t.acquire(mask)
		if err != nil {
			Diagf("frame %d: acquisition failed: %v", t.frames, err)
			return nil, err
		}
		t.commit(ff)
		Opsf("frame %d: acquired lane, mode %s -> %s", t.frames, ModeUninitialized, ModeTracking)
		return t.result(FrameAcquired, ff), nil
	}

	// Step 2: local search seeded by the previous fit
	ff, err := t.follow(mask, t.state.fits)
	if err == nil {
		t.commit(ff)
		return t.result(FrameTracked, ff), nil
	}

	// Step 3: optional same-frame blind retry
	if t.Config.RetryBlindOnStale {
		if blind, blindErr := t.acquire(mask); blindErr == nil {
			Opsf("frame %d: local search failed (%v), window search recovered", t.frames, err)
			t.commit(blind)
			return t.result(FrameAcquired, blind), nil
		}
	}

	// Step 4: keep the previous geometry and report staleness
	return t.stale(err), nil
}

func (t *Tracker) checkGeometry(mask *BinaryMask) error {
	if err := mask.Validate(); err != nil {
		return err
	}
	if t.Config.ImageWidth > 0 && mask.Width != t.Config.ImageWidth {
		return fmt.Errorf("%w: mask width %d, configured %d", ErrGeometryMismatch, mask.Width, t.Config.ImageWidth)
	}
	if t.Config.ImageHeight > 0 && mask.Height != t.Config.ImageHeight {
		return fmt.Errorf("%w: mask height %d, configured %d", ErrGeometryMismatch, mask.Height, t.Config.ImageHeight)
	}
	return nil
}

// acquire runs the window search and fits both boundaries.
func (t *Tracker) acquire(mask *BinaryMask) (frameFit, error) {
	left, right, trace, err := t.window.Search(mask)
	if err != nil {
		return frameFit{}, fmt.Errorf("window search: %w", err)
	}
	ff, err := t.fitClusters(mask, left, right)
	if err != nil {
		return frameFit{}, fmt.Errorf("window search: %w", err)
	}
	ff.trace = trace
	return ff, nil
}

// follow runs the local search around prior and fits both boundaries.
func (t *Tracker) follow(mask *BinaryMask, prior FitPair) (frameFit, error) {
	left, right, err := t.local.Search(mask, prior)
	if err != nil {
		return frameFit{}, fmt.Errorf("%w: local search: %w", ErrDetectionFailed, err)
	}
	ff, err := t.fitClusters(mask, left, right)
	if err != nil {
		return frameFit{}, fmt.Errorf("local search: %w", err)
	}
	return ff, nil
}

func (t *Tracker) fitClusters(mask *BinaryMask, left, right PixelCluster) (frameFit, error) {
	leftFit, err := t.fitter.Fit(left)
	if err != nil {
		return frameFit{}, fmt.Errorf("%w: left boundary (%d px): %w", ErrDetectionFailed, left.Len(), err)
	}
	rightFit, err := t.fitter.Fit(right)
	if err != nil {
		return frameFit{}, fmt.Errorf("%w: right boundary (%d px): %w", ErrDetectionFailed, right.Len(), err)
	}
	fits := FitPair{Left: leftFit, Right: rightFit}
	curv, err := t.estimator.Estimate(fits, mask.Width, mask.Height)
	if err != nil {
		return frameFit{}, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}
	return frameFit{fits: fits, left: left, right: right, curvature: curv}, nil
}

// commit makes ff the current state and records its radii.
func (t *Tracker) commit(ff frameFit) {
	t.state = laneState{mode: ModeTracking, fits: ff.fits}
	t.leftHistory.Push(ff.curvature.LeftRadiusM)
	t.rightHistory.Push(ff.curvature.RightRadiusM)
	t.lastCurvature = ff.curvature
	t.staleFrames = 0

	Diagf("frame %d: left=(%.3g, %.3g, %.1f) right=(%.3g, %.3g, %.1f) R=%.0f/%.0f m offset=%.3f m",
		t.frames,
		ff.fits.Left.A, ff.fits.Left.B, ff.fits.Left.C,
		ff.fits.Right.A, ff.fits.Right.B, ff.fits.Right.C,
		ff.curvature.LeftRadiusM, ff.curvature.RightRadiusM, ff.curvature.CenterOffsetM)
}

// stale builds the result for a failed tracking frame and applies the
// re-acquisition policy.
func (t *Tracker) stale(cause error) *FrameResult {
	t.staleFrames++
	res := &FrameResult{
		Frame:       t.frames,
		Status:      FrameStale,
		Mode:        t.state.mode,
		Fits:        t.state.fits,
		Curvature:   t.lastCurvature,
		StaleFrames: t.staleFrames,
		StaleCause:  cause,
	}
	res.SmoothedLeftRadiusM, _ = t.leftHistory.Mean()
	res.SmoothedRightRadiusM, _ = t.rightHistory.Mean()

	Diagf("frame %d: stale (%d consecutive): %v", t.frames, t.staleFrames, cause)

	if t.Config.MaxStaleFrames > 0 && t.staleFrames >= t.Config.MaxStaleFrames {
		Opsf("frame %d: %d consecutive stale frames, mode %s -> %s",
			t.frames, t.staleFrames, ModeTracking, ModeUninitialized)
		t.state = laneState{mode: ModeUninitialized}
		t.leftHistory.Reset()
		t.rightHistory.Reset()
		t.staleFrames = 0
		res.Mode = ModeUninitialized
		res.Reacquire = true
	}
	return res
}

func (t *Tracker) result(status FrameStatus, ff frameFit) *FrameResult {
	res := &FrameResult{
		Frame:        t.frames,
		Status:       status,
		Mode:         t.state.mode,
		Fits:         ff.fits,
		LeftCluster:  ff.left,
		RightCluster: ff.right,
		Windows:      ff.trace,
		Curvature:    ff.curvature,
	}
	res.SmoothedLeftRadiusM, _ = t.leftHistory.Mean()
	res.SmoothedRightRadiusM, _ = t.rightHistory.Mean()
	return res
}
