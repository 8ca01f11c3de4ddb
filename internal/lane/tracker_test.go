package lane

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanetrack/internal/config"
)

func TestTracker_AcquireThenTrack(t *testing.T) {
	tr := newTestTracker(t, testTrackerConfig(t))
	assert.Equal(t, ModeUninitialized, tr.Mode())
	_, ok := tr.Fits()
	assert.False(t, ok)

	m := synthMask(t, testLeftFit, testRightFit)

	res, err := tr.Detect(m)
	require.NoError(t, err)
	assert.Equal(t, FrameAcquired, res.Status)
	assert.Equal(t, ModeTracking, res.Mode)
	assert.Equal(t, int64(1), res.Frame)
	assert.NotNil(t, res.Windows)
	assert.Greater(t, res.LeftCluster.Len(), 0)
	assert.InDelta(t, testLeftFit.C, res.Fits.Left.C, 0.5)
	assert.InDelta(t, testRightFit.C, res.Fits.Right.C, 0.5)
	assert.Greater(t, res.Curvature.LeftRadiusM, 0.0)
	last := float64(testHeight - 1)
	wantOffset, err := CenterOffset(testWidth, testLeftFit.At(last), testRightFit.At(last), 3.7)
	require.NoError(t, err)
	assert.InDelta(t, wantOffset, res.Curvature.CenterOffsetM, 0.01)

	res, err = tr.Detect(m)
	require.NoError(t, err)
	assert.Equal(t, FrameTracked, res.Status)
	assert.Equal(t, ModeTracking, res.Mode)
	assert.Equal(t, int64(2), res.Frame)
	assert.Nil(t, res.Windows)
	assert.Equal(t, 0, res.StaleFrames)

	fits, ok := tr.Fits()
	require.True(t, ok)
	assert.Equal(t, res.Fits, fits)
	assert.Equal(t, int64(2), tr.FrameCount())
}

func TestTracker_EmptyFirstFrameFails(t *testing.T) {
	tr := newTestTracker(t, testTrackerConfig(t))

	res, err := tr.Detect(NewBinaryMask(testWidth, testHeight))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDetectionFailed))
	assert.True(t, errors.Is(err, ErrEmptyHistogram))
	assert.Equal(t, ModeUninitialized, tr.Mode())
	assert.Equal(t, int64(1), tr.FrameCount())

	// A later good frame still acquires.
	res, err = tr.Detect(synthMask(t, testLeftFit, testRightFit))
	require.NoError(t, err)
	assert.Equal(t, FrameAcquired, res.Status)
	assert.Equal(t, int64(2), res.Frame)
}

func TestTracker_StaleKeepsPreviousGeometry(t *testing.T) {
	tr := newTestTracker(t, testTrackerConfig(t))

	good, err := tr.Detect(synthMask(t, testLeftFit, testRightFit))
	require.NoError(t, err)

	empty := NewBinaryMask(testWidth, testHeight)
	for i := 1; i <= 4; i++ {
		res, err := tr.Detect(empty)
		require.NoError(t, err, "stale frames are not errors")
		assert.Equal(t, FrameStale, res.Status)
		assert.Equal(t, ModeTracking, res.Mode)
		assert.Equal(t, i, res.StaleFrames)
		assert.False(t, res.Reacquire)
		assert.Equal(t, good.Fits, res.Fits)
		assert.Equal(t, good.Curvature, res.Curvature)
		assert.Equal(t, good.SmoothedLeftRadiusM, res.SmoothedLeftRadiusM)
		assert.Equal(t, 0, res.LeftCluster.Len())
		assert.ErrorIs(t, res.StaleCause, ErrDetectionFailed)
		assert.ErrorIs(t, res.StaleCause, ErrFit)
	}

	// Recovery resets the stale counter.
	res, err := tr.Detect(synthMask(t, testLeftFit, testRightFit))
	require.NoError(t, err)
	assert.Equal(t, FrameTracked, res.Status)
	assert.Equal(t, 0, res.StaleFrames)
}

func TestTracker_MaxStaleFramesReacquires(t *testing.T) {
	cfg := testTrackerConfig(t)
	cfg.MaxStaleFrames = 2
	tr := newTestTracker(t, cfg)

	m := synthMask(t, testLeftFit, testRightFit)
	empty := NewBinaryMask(testWidth, testHeight)

	_, err := tr.Detect(m)
	require.NoError(t, err)

	res, err := tr.Detect(empty)
	require.NoError(t, err)
	assert.Equal(t, FrameStale, res.Status)
	assert.False(t, res.Reacquire)
	assert.Equal(t, ModeTracking, tr.Mode())

	res, err = tr.Detect(empty)
	require.NoError(t, err)
	assert.Equal(t, FrameStale, res.Status)
	assert.True(t, res.Reacquire)
	assert.Equal(t, ModeUninitialized, res.Mode)
	assert.Equal(t, ModeUninitialized, tr.Mode())
	_, ok := tr.Fits()
	assert.False(t, ok)

	res, err = tr.Detect(m)
	require.NoError(t, err)
	assert.Equal(t, FrameAcquired, res.Status)
	assert.Equal(t, int64(4), res.Frame)
	// History was cleared on re-acquisition.
	assert.Equal(t, res.Curvature.LeftRadiusM, res.SmoothedLeftRadiusM)
}

func TestTracker_RetryBlindOnStale(t *testing.T) {
	before := FitPair{Left: LaneFit{C: 200}, Right: LaneFit{C: 700}}
	after := FitPair{Left: LaneFit{C: 450}, Right: LaneFit{C: 950}}

	run := func(retry bool) *FrameResult {
		cfg := testTrackerConfig(t)
		cfg.RetryBlindOnStale = retry
		tr := newTestTracker(t, cfg)

		_, err := tr.Detect(synthMask(t, before.Left, before.Right))
		require.NoError(t, err)

		// The lane jumped 250 px: nothing lies within 100 px of the old fits.
		res, err := tr.Detect(synthMask(t, after.Left, after.Right))
		require.NoError(t, err)
		return res
	}

	res := run(false)
	assert.Equal(t, FrameStale, res.Status)
	assert.InDelta(t, 200, res.Fits.Left.C, 0.5)

	res = run(true)
	assert.Equal(t, FrameAcquired, res.Status)
	assert.Equal(t, ModeTracking, res.Mode)
	assert.NotNil(t, res.Windows)
	assert.InDelta(t, 450, res.Fits.Left.C, 0.5)
	assert.InDelta(t, 950, res.Fits.Right.C, 0.5)
	assert.True(t, IsStraight(res.Curvature.LeftRadiusM))
}

func TestTracker_ResetMatchesFresh(t *testing.T) {
	cfg := testTrackerConfig(t)
	used := newTestTracker(t, cfg)

	m := synthMask(t, testLeftFit, testRightFit)
	bent := synthMask(t, LaneFit{A: 2e-4, B: -0.1, C: 352}, LaneFit{A: 2e-4, B: -0.1, C: 1032})
	for _, mask := range []*BinaryMask{m, bent, NewBinaryMask(testWidth, testHeight), bent} {
		_, err := used.Detect(mask)
		require.NoError(t, err)
	}
	used.Reset()
	assert.Equal(t, ModeUninitialized, used.Mode())
	assert.Equal(t, int64(0), used.FrameCount())

	fresh := newTestTracker(t, cfg)
	for i, mask := range []*BinaryMask{m, bent, m} {
		got, err := used.Detect(mask)
		require.NoError(t, err)
		want, err := fresh.Detect(mask)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("frame %d after Reset differs from fresh tracker (-fresh +reset):\n%s", i, diff)
		}
	}
}

func TestTracker_GeometryMismatch(t *testing.T) {
	tr := newTestTracker(t, testTrackerConfig(t))

	_, err := tr.Detect(synthMask(t, testLeftFit, testRightFit))
	require.NoError(t, err)
	fits, _ := tr.Fits()

	res, err := tr.Detect(NewBinaryMask(640, 480))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGeometryMismatch)
	assert.False(t, errors.Is(err, ErrDetectionFailed))

	_, err = tr.Detect(&BinaryMask{Width: testWidth, Height: testHeight})
	assert.ErrorIs(t, err, ErrGeometryMismatch)

	assert.Equal(t, int64(1), tr.FrameCount())
	assert.Equal(t, ModeTracking, tr.Mode())
	after, _ := tr.Fits()
	assert.Equal(t, fits, after)
}

func TestTracker_SmoothingUsesLastThreeRadii(t *testing.T) {
	tr := newTestTracker(t, testTrackerConfig(t))

	var raw []float64
	for _, a := range []float64{1e-4, 2e-4, 1.5e-4, 3e-4} {
		m := synthMask(t, LaneFit{A: a, B: -0.1, C: 352}, LaneFit{A: a, B: -0.1, C: 1032})
		res, err := tr.Detect(m)
		require.NoError(t, err)
		require.NotEqual(t, FrameStale, res.Status)
		raw = append(raw, res.Curvature.LeftRadiusM)

		n := len(raw)
		if n > 3 {
			n = 3
		}
		want := 0.0
		for _, r := range raw[len(raw)-n:] {
			want += r
		}
		want /= float64(n)
		assert.InDelta(t, want, res.SmoothedLeftRadiusM, 1e-6*want)
	}
	// Tighter curves produce smaller radii.
	assert.Greater(t, raw[0], raw[3])
}

func TestTracker_InvalidConfig(t *testing.T) {
	cfg := testTrackerConfig(t)
	cfg.Windows = 0
	_, err := NewTracker(cfg)
	assert.Error(t, err)

	cfg = testTrackerConfig(t)
	cfg.SmoothingHistorySize = 0
	_, err = NewTracker(cfg)
	assert.Error(t, err)

	cfg = testTrackerConfig(t)
	cfg.LaneWidthMeters = math.NaN()
	_, err = NewTracker(cfg)
	assert.Error(t, err)
}

func TestTrackMode_String(t *testing.T) {
	assert.Equal(t, "uninitialized", ModeUninitialized.String())
	assert.Equal(t, "tracking", ModeTracking.String())
	assert.Equal(t, "TrackMode(7)", TrackMode(7).String())
}

func TestTrackerConfigFromDefaults(t *testing.T) {
	cfg := testTrackerConfig(t)
	assert.Equal(t, 9, cfg.Windows)
	assert.Equal(t, 100, cfg.WindowMargin)
	assert.Equal(t, 50, cfg.MinRecenterPixels)
	assert.Equal(t, 100, cfg.LocalMargin)
	assert.Equal(t, 3, cfg.SmoothingHistorySize)
	assert.InDelta(t, 30.0/720.0, cfg.MetersPerRow, 1e-15)
	assert.NoError(t, cfg.Validate())
}

func loadTrackerConfigJSON(t *testing.T, body string) TrackerConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	tuning, err := config.LoadTuningConfig(path)
	require.NoError(t, err)
	return TrackerConfigFromTuning(tuning)
}

func TestTracker_PartialConfigKeepsGeometryCheck(t *testing.T) {
	cfg := loadTrackerConfigJSON(t, `{"local_margin_px": 80}`)
	assert.Equal(t, testWidth, cfg.ImageWidth)
	assert.Equal(t, testHeight, cfg.ImageHeight)

	tr := newTestTracker(t, cfg)
	res, err := tr.Detect(NewBinaryMask(640, 360))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGeometryMismatch)
	assert.Equal(t, int64(0), tr.FrameCount())
	assert.Equal(t, ModeUninitialized, tr.Mode())
}

func TestTracker_ExplicitZeroGeometryDisablesCheck(t *testing.T) {
	cfg := loadTrackerConfigJSON(t, `{"image_width": 0, "image_height": 0}`)
	tr := newTestTracker(t, cfg)

	_, err := tr.Detect(NewBinaryMask(640, 360))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrGeometryMismatch))
	assert.ErrorIs(t, err, ErrDetectionFailed)
	assert.Equal(t, int64(1), tr.FrameCount())
}
