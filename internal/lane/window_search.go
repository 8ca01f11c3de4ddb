package lane

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Side identifies a lane boundary.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// WindowSearchDetector finds boundary pixels without prior knowledge by
// stacking fixed-height search windows from the bottom of the mask upwards.
type WindowSearchDetector struct {
	Windows int // number of stacked windows (bands)
	Margin  int // window half-width in pixels
	MinPix  int // pixels needed in a window to recentre the next one
}

// SearchWindow is one rectangle visited by the window search.
// Bounds are half-open: [XLow, XHigh) x [YLow, YHigh).
type SearchWindow struct {
	Side   Side
	Band   int
	XLow   int
	XHigh  int
	YLow   int
	YHigh  int
	Count  int
	Moved  bool // true when Count >= MinPix and the next window was recentred
	Center int  // centre used for this window
}

// WindowTrace records the intermediate products of a window search for
// visualisation and debugging.
type WindowTrace struct {
	Histogram []float64
	LeftBase  int
	RightBase int
	Windows   []SearchWindow
}

// Search runs the sliding-window search over mask and returns the left and
// right pixel clusters. It fails with ErrEmptyHistogram when either half of
// the bottom-half histogram is all zero.
func (d WindowSearchDetector) Search(mask *BinaryMask) (left, right PixelCluster, trace *WindowTrace, err error) {
	if err := mask.Validate(); err != nil {
		return left, right, nil, err
	}
	if d.Windows < 1 || d.Margin < 1 || d.MinPix < 1 {
		return left, right, nil, fmt.Errorf("invalid window search parameters: windows=%d margin=%d minpix=%d",
			d.Windows, d.Margin, d.MinPix)
	}
	if mask.Width < 2 {
		return left, right, nil, fmt.Errorf("%w: mask width %d too narrow to split", ErrDetectionFailed, mask.Width)
	}
	windowHeight := mask.Height / d.Windows
	if windowHeight < 1 {
		return left, right, nil, fmt.Errorf("%w: %d windows do not fit %d rows", ErrDetectionFailed, d.Windows, mask.Height)
	}

	hist := columnHistogram(mask, mask.Height/2)
	midpoint := mask.Width / 2

	leftHalf, rightHalf := hist[:midpoint], hist[midpoint:]
	if floats.Max(leftHalf) == 0 {
		return left, right, nil, fmt.Errorf("%w: no active pixels in left half", ErrEmptyHistogram)
	}
	if floats.Max(rightHalf) == 0 {
		return left, right, nil, fmt.Errorf("%w: no active pixels in right half", ErrEmptyHistogram)
	}
	leftBase := floats.MaxIdx(leftHalf)
	rightBase := floats.MaxIdx(rightHalf) + midpoint

	trace = &WindowTrace{
		Histogram: hist,
		LeftBase:  leftBase,
		RightBase: rightBase,
		Windows:   make([]SearchWindow, 0, 2*d.Windows),
	}

	rows := mask.rowsOfActive()
	leftCurrent, rightCurrent := leftBase, rightBase

	for band := 0; band < d.Windows; band++ {
		yLow := mask.Height - (band+1)*windowHeight
		yHigh := mask.Height - band*windowHeight

		var lw, rw SearchWindow
		leftCurrent, lw = d.collect(rows, &left, SideLeft, band, leftCurrent, yLow, yHigh)
		rightCurrent, rw = d.collect(rows, &right, SideRight, band, rightCurrent, yLow, yHigh)
		trace.Windows = append(trace.Windows, lw, rw)

		if Enabled(StreamTrace) {
			Tracef("window band=%d left=[%d,%d) n=%d right=[%d,%d) n=%d",
				band, lw.XLow, lw.XHigh, lw.Count, rw.XLow, rw.XHigh, rw.Count)
		}
	}

	return left, right, trace, nil
}

// collect appends the active pixels inside one window to cluster and returns
// the centre to use for the next band up.
func (d WindowSearchDetector) collect(rows [][]int, cluster *PixelCluster, side Side, band, center, yLow, yHigh int) (int, SearchWindow) {
	w := SearchWindow{
		Side:   side,
		Band:   band,
		XLow:   center - d.Margin,
		XHigh:  center + d.Margin,
		YLow:   yLow,
		YHigh:  yHigh,
		Center: center,
	}

	var found []float64
	for y := yLow; y < yHigh; y++ {
		for _, x := range rows[y] {
			if x < w.XLow {
				continue
			}
			if x >= w.XHigh {
				break
			}
			cluster.add(x, y)
			found = append(found, float64(x))
		}
	}
	w.Count = len(found)

	// Gaps in the paint leave the centre where it was.
	if w.Count >= d.MinPix {
		w.Moved = true
		return int(stat.Mean(found, nil)), w
	}
	return center, w
}

// columnHistogram sums active pixels per column over rows [fromRow, Height).
func columnHistogram(mask *BinaryMask, fromRow int) []float64 {
	hist := make([]float64, mask.Width)
	row := make([]float64, mask.Width)
	for y := fromRow; y < mask.Height; y++ {
		pix := mask.Pix[y*mask.Width : (y+1)*mask.Width]
		for x, v := range pix {
			if v != 0 {
				row[x] = 1
			} else {
				row[x] = 0
			}
		}
		floats.Add(hist, row)
	}
	return hist
}
