package lane

import "fmt"

// LocalSearchDetector collects boundary pixels that lie within Margin pixels
// of a previous fit. Left and right membership are tested independently, so a
// pixel inside both bands belongs to both clusters.
type LocalSearchDetector struct {
	Margin int
}

// Search returns the pixels of mask within the horizontal band
// [fit(y)-Margin, fit(y)+Margin] around each prior fit.
func (d LocalSearchDetector) Search(mask *BinaryMask, prior FitPair) (left, right PixelCluster, err error) {
	if err := mask.Validate(); err != nil {
		return left, right, err
	}
	if d.Margin < 1 {
		return left, right, fmt.Errorf("invalid local search margin %d", d.Margin)
	}

	margin := float64(d.Margin)
	for y := 0; y < mask.Height; y++ {
		fy := float64(y)
		lc := prior.Left.At(fy)
		rc := prior.Right.At(fy)
		row := mask.Pix[y*mask.Width : (y+1)*mask.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			fx := float64(x)
			if fx >= lc-margin && fx <= lc+margin {
				left.add(x, y)
			}
			if fx >= rc-margin && fx <= rc+margin {
				right.add(x, y)
			}
		}
	}

	Tracef("local search margin=%d left=%d px right=%d px", d.Margin, left.Len(), right.Len())
	return left, right, nil
}
