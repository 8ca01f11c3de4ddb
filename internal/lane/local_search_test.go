package lane

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSearch_MatchesWindowSearch(t *testing.T) {
	m := synthMask(t, testLeftFit, testRightFit)

	wl, wr, _, err := defaultWindowSearch().Search(m)
	require.NoError(t, err)

	var f PolynomialFitter
	leftFit, err := f.Fit(wl)
	require.NoError(t, err)
	rightFit, err := f.Fit(wr)
	require.NoError(t, err)

	ll, lr, err := LocalSearchDetector{Margin: 100}.Search(m, FitPair{Left: leftFit, Right: rightFit})
	require.NoError(t, err)

	if diff := cmp.Diff(pixelSet(wl), pixelSet(ll)); diff != "" {
		t.Errorf("left cluster mismatch (-window +local):\n%s", diff)
	}
	if diff := cmp.Diff(pixelSet(wr), pixelSet(lr)); diff != "" {
		t.Errorf("right cluster mismatch (-window +local):\n%s", diff)
	}

	// And the refit agrees with the seeding fit.
	leftAgain, err := f.Fit(ll)
	require.NoError(t, err)
	assert.InDelta(t, leftFit.A, leftAgain.A, 1e-10)
	assert.InDelta(t, leftFit.C, leftAgain.C, 1e-6)
}

func TestLocalSearch_MarginBounds(t *testing.T) {
	m := NewBinaryMask(100, 3)
	for y := 0; y < 3; y++ {
		m.Set(40, y) // exactly margin away from the left fit
		m.Set(41, y) // just outside
	}
	prior := FitPair{Left: LaneFit{C: 30}, Right: LaneFit{C: 90}}

	left, right, err := LocalSearchDetector{Margin: 10}.Search(m, prior)
	require.NoError(t, err)
	assert.Equal(t, []int{40, 40, 40}, left.X)
	assert.Equal(t, []int{0, 1, 2}, left.Y)
	assert.Equal(t, 0, right.Len())
}

func TestLocalSearch_OverlapIsTolerated(t *testing.T) {
	m := NewBinaryMask(100, 5)
	for y := 0; y < 5; y++ {
		m.Set(50, y)
	}
	prior := FitPair{Left: LaneFit{C: 45}, Right: LaneFit{C: 55}}

	left, right, err := LocalSearchDetector{Margin: 10}.Search(m, prior)
	require.NoError(t, err)
	assert.Equal(t, 5, left.Len())
	assert.Equal(t, 5, right.Len())
}

func TestLocalSearch_FewRowsFailsFit(t *testing.T) {
	m := NewBinaryMask(100, 10)
	m.Set(30, 4)
	m.Set(31, 5)
	prior := FitPair{Left: LaneFit{C: 30}, Right: LaneFit{C: 80}}

	left, _, err := LocalSearchDetector{Margin: 10}.Search(m, prior)
	require.NoError(t, err)
	assert.Equal(t, 2, left.DistinctRows())

	_, err = PolynomialFitter{}.Fit(left)
	assert.ErrorIs(t, err, ErrFit)
}

func TestLocalSearch_InvalidMargin(t *testing.T) {
	m := NewBinaryMask(10, 10)
	_, _, err := LocalSearchDetector{}.Search(m, FitPair{})
	assert.Error(t, err)
}
