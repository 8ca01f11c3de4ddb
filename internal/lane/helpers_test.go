package lane

import (
	"math"
	"sort"
	"testing"
)

const (
	testWidth  = 1280
	testHeight = 720
)

// Gentle left-hand curve with a 680 px lane, centred in a 1280x720 image.
var (
	testLeftFit  = LaneFit{A: 1e-4, B: -0.1, C: 352}
	testRightFit = LaneFit{A: 1e-4, B: -0.1, C: 1032}
)

// paintLane draws a horizontally symmetric stripe of 2*halfWidth+1 pixels
// centred on round(fit(y)) for every row.
func paintLane(m *BinaryMask, fit LaneFit, halfWidth int) {
	for y := 0; y < m.Height; y++ {
		cx := int(math.Round(fit.At(float64(y))))
		for x := cx - halfWidth; x <= cx+halfWidth; x++ {
			m.Set(x, y)
		}
	}
}

func synthMask(t *testing.T, left, right LaneFit) *BinaryMask {
	t.Helper()
	m := NewBinaryMask(testWidth, testHeight)
	paintLane(m, left, 5)
	paintLane(m, right, 5)
	return m
}

func testTrackerConfig(t *testing.T) TrackerConfig {
	t.Helper()
	cfg := DefaultTrackerConfig()
	if cfg.ImageWidth != testWidth || cfg.ImageHeight != testHeight {
		t.Fatalf("defaults file geometry %dx%d, tests expect %dx%d",
			cfg.ImageWidth, cfg.ImageHeight, testWidth, testHeight)
	}
	return cfg
}

func newTestTracker(t *testing.T, cfg TrackerConfig) *Tracker {
	t.Helper()
	tr, err := NewTracker(cfg)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tr
}

type pixel struct{ X, Y int }

// pixelSet returns the cluster's pixels sorted by (y, x).
func pixelSet(c PixelCluster) []pixel {
	out := make([]pixel, c.Len())
	for i := range c.X {
		out[i] = pixel{c.X[i], c.Y[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
