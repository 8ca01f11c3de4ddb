package lane

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// minDistinctRows is the number of distinct y samples needed to determine a
// quadratic.
const minDistinctRows = 3

// LaneFit is a boundary x = A*y^2 + B*y + C. y is the independent variable
// because boundaries run close to vertical in the warped image.
type LaneFit struct {
	A float64
	B float64
	C float64
}

// At evaluates the fit at row y.
func (f LaneFit) At(y float64) float64 {
	return f.A*y*y + f.B*y + f.C
}

// IsFinite reports whether all three coefficients are finite.
func (f LaneFit) IsFinite() bool {
	for _, v := range [3]float64{f.A, f.B, f.C} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FitPair holds the left and right boundary fits of one frame.
type FitPair struct {
	Left  LaneFit
	Right LaneFit
}

// Evaluate returns fit(y) for every row y in [0, rows).
func Evaluate(fit LaneFit, rows int) []float64 {
	if rows <= 0 {
		return nil
	}
	xs := make([]float64, rows)
	for y := range xs {
		xs[y] = fit.At(float64(y))
	}
	return xs
}

// PolynomialFitter fits quadratics to pixel clusters.
type PolynomialFitter struct{}

// Fit returns the least-squares quadratic of x against y for the cluster.
func (PolynomialFitter) Fit(c PixelCluster) (LaneFit, error) {
	if len(c.X) != len(c.Y) {
		return LaneFit{}, fmt.Errorf("%w: cluster has %d x and %d y values", ErrFit, len(c.X), len(c.Y))
	}
	xs, ys := c.floats()
	return FitQuadratic(ys, xs)
}

// FitQuadratic solves min sum (x_i - (A*y_i^2 + B*y_i + C))^2 by QR
// decomposition. The y column is scaled to [-1, 1] before solving so the
// normal-equation conditioning does not depend on image height.
func FitQuadratic(ys, xs []float64) (LaneFit, error) {
	n := len(ys)
	if n == 0 {
		return LaneFit{}, fmt.Errorf("%w: empty cluster", ErrFit)
	}
	if len(xs) != n {
		return LaneFit{}, fmt.Errorf("%w: %d x values for %d y values", ErrFit, len(xs), n)
	}

	distinct := make(map[float64]struct{}, minDistinctRows)
	scale := 0.0
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) || math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			return LaneFit{}, fmt.Errorf("%w: non-finite sample at index %d", ErrFit, i)
		}
		if len(distinct) < minDistinctRows {
			distinct[y] = struct{}{}
		}
		if a := math.Abs(y); a > scale {
			scale = a
		}
	}
	if len(distinct) < minDistinctRows {
		return LaneFit{}, fmt.Errorf("%w: need %d distinct rows, got %d", ErrFit, minDistinctRows, len(distinct))
	}

	A := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, y := range ys {
		t := y / scale
		A.Set(i, 0, t*t)
		A.Set(i, 1, t)
		A.Set(i, 2, 1)
		b.SetVec(i, xs[i])
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return LaneFit{}, fmt.Errorf("%w: %v", ErrFit, err)
	}

	fit := LaneFit{
		A: params.AtVec(0) / (scale * scale),
		B: params.AtVec(1) / scale,
		C: params.AtVec(2),
	}
	if !fit.IsFinite() {
		return LaneFit{}, fmt.Errorf("%w: non-finite coefficients %+v", ErrFit, fit)
	}
	return fit, nil
}
