package lane

import "gonum.org/v1/gonum/stat"

// RadiusHistory is a fixed-capacity FIFO of curvature radii backed by a
// circular buffer. Pushing into a full history overwrites the oldest value.
type RadiusHistory struct {
	buf   []float64
	start int // index of the oldest value
	n     int
}

// NewRadiusHistory returns an empty history holding at most capacity values.
// A capacity below 1 is raised to 1.
func NewRadiusHistory(capacity int) *RadiusHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &RadiusHistory{buf: make([]float64, capacity)}
}

// Push appends v, dropping the oldest value when full.
func (h *RadiusHistory) Push(v float64) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of retained values.
func (h *RadiusHistory) Len() int { return h.n }

// Cap returns the capacity.
func (h *RadiusHistory) Cap() int { return len(h.buf) }

// Values returns the retained values, oldest first.
func (h *RadiusHistory) Values() []float64 {
	out := make([]float64, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Mean returns the mean of the retained values and false when empty.
// An infinite radius in the window makes the mean infinite.
func (h *RadiusHistory) Mean() (float64, bool) {
	if h.n == 0 {
		return 0, false
	}
	return stat.Mean(h.Values(), nil), true
}

// Reset empties the history without changing its capacity.
func (h *RadiusHistory) Reset() {
	h.start = 0
	h.n = 0
}
