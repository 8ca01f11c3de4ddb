package lane

import (
	"fmt"
	"math"
)

// InfiniteRadius is the radius reported for a boundary with no measurable
// curvature (leading coefficient below the straight-line epsilon).
var InfiniteRadius = math.Inf(1)

// IsStraight reports whether r is the infinite-radius sentinel.
func IsStraight(r float64) bool {
	return math.IsInf(r, 1)
}

// CurvatureResult is the physical geometry of one frame.
//
// CenterOffsetM is (lane centre - image centre) in metres: positive means
// the lane centre lies right of the image centre, so the vehicle sits left
// of the lane centre.
type CurvatureResult struct {
	LeftRadiusM    float64
	RightRadiusM   float64
	CenterOffsetM  float64
	LaneWidthPx    float64 // boundary separation at the bottom row
	MetersPerPixel float64 // horizontal scale derived from LaneWidthPx
}

// CurvatureEstimator converts pixel fits to physical curvature and offset.
type CurvatureEstimator struct {
	LaneWidthMeters float64 // assumed physical lane width
	MetersPerRow    float64 // vertical scale of the warped image
	StraightEpsilon float64 // |A| at or below this is treated as straight
}

// Estimate evaluates both fits over rows [0, height), derives the horizontal
// scale from the lane width at the bottom row, refits in metres and returns
// the curvature radius at the bottom row plus the lane-centre offset.
func (e CurvatureEstimator) Estimate(fits FitPair, width, height int) (CurvatureResult, error) {
	if height < minDistinctRows {
		return CurvatureResult{}, fmt.Errorf("%w: %d rows too few to evaluate curvature", ErrDegenerateGeometry, height)
	}
	if !(e.LaneWidthMeters > 0) || !(e.MetersPerRow > 0) {
		return CurvatureResult{}, fmt.Errorf("invalid calibration: lane width %g m, %g m/row", e.LaneWidthMeters, e.MetersPerRow)
	}

	leftX := Evaluate(fits.Left, height)
	rightX := Evaluate(fits.Right, height)
	last := height - 1

	xmPerPix, err := metersPerPixel(leftX[last], rightX[last], e.LaneWidthMeters)
	if err != nil {
		return CurvatureResult{}, err
	}
	ymPerPix := e.MetersPerRow

	ysM := make([]float64, height)
	for y := range ysM {
		ysM[y] = float64(y) * ymPerPix
	}
	leftM := scaled(leftX, xmPerPix)
	rightM := scaled(rightX, xmPerPix)

	leftFitM, err := FitQuadratic(ysM, leftM)
	if err != nil {
		return CurvatureResult{}, fmt.Errorf("left boundary in metres: %w", err)
	}
	rightFitM, err := FitQuadratic(ysM, rightM)
	if err != nil {
		return CurvatureResult{}, fmt.Errorf("right boundary in metres: %w", err)
	}

	yEval := float64(last) * ymPerPix
	res := CurvatureResult{
		LeftRadiusM:    RadiusOfCurvature(leftFitM, yEval, e.StraightEpsilon),
		RightRadiusM:   RadiusOfCurvature(rightFitM, yEval, e.StraightEpsilon),
		LaneWidthPx:    rightX[last] - leftX[last],
		MetersPerPixel: xmPerPix,
	}
	res.CenterOffsetM = centerOffset(width, leftX[last], rightX[last], xmPerPix)
	return res, nil
}

// RadiusOfCurvature returns (1 + (2*A*y + B)^2)^1.5 / |2*A| for a fit in
// physical units evaluated at y. It returns InfiniteRadius when |A| is at
// or below eps.
func RadiusOfCurvature(fit LaneFit, y, eps float64) float64 {
	if math.Abs(fit.A) <= eps {
		return InfiniteRadius
	}
	slope := 2*fit.A*y + fit.B
	r := math.Pow(1+slope*slope, 1.5) / math.Abs(2*fit.A)
	if math.IsNaN(r) {
		return InfiniteRadius
	}
	return r
}

// CenterOffset returns the lane-centre offset in metres for an image of the
// given width and the boundary positions at the bottom row.
func CenterOffset(imageWidth int, leftBottomX, rightBottomX, laneWidthMeters float64) (float64, error) {
	xmPerPix, err := metersPerPixel(leftBottomX, rightBottomX, laneWidthMeters)
	if err != nil {
		return 0, err
	}
	return centerOffset(imageWidth, leftBottomX, rightBottomX, xmPerPix), nil
}

func centerOffset(imageWidth int, leftBottomX, rightBottomX, xmPerPix float64) float64 {
	centerImg := float64(imageWidth) / 2
	centerLane := leftBottomX + (rightBottomX-leftBottomX)/2
	return (centerLane - centerImg) * xmPerPix
}

func metersPerPixel(leftBottomX, rightBottomX, laneWidthMeters float64) (float64, error) {
	widthPx := rightBottomX - leftBottomX
	if !(widthPx > 0) || math.IsInf(widthPx, 0) {
		return 0, fmt.Errorf("%w: lane width %.2f px at bottom row", ErrDegenerateGeometry, widthPx)
	}
	return laneWidthMeters / widthPx, nil
}

func scaled(xs []float64, k float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * k
	}
	return out
}
