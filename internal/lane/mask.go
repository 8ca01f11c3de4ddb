package lane

import "fmt"

// BinaryMask is a single-channel mask of candidate lane pixels in bird's-eye
// coordinates. Pix is row-major; any non-zero byte is an active pixel.
type BinaryMask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBinaryMask allocates an all-zero mask of the given size.
func NewBinaryMask(width, height int) *BinaryMask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &BinaryMask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (m *BinaryMask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrGeometryMismatch)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: empty mask %dx%d", ErrGeometryMismatch, m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height {
		return fmt.Errorf("%w: buffer has %d bytes, want %d for %dx%d",
			ErrGeometryMismatch, len(m.Pix), m.Width*m.Height, m.Width, m.Height)
	}
	return nil
}

// Set marks (x, y) active. Out-of-range coordinates are ignored.
func (m *BinaryMask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = 1
}

// At reports whether (x, y) is active. Out-of-range coordinates are inactive.
func (m *BinaryMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Count returns the number of active pixels.
func (m *BinaryMask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// rowsOfActive returns, for each row, the x coordinates of its active pixels
// in increasing order.
func (m *BinaryMask) rowsOfActive() [][]int {
	rows := make([][]int, m.Height)
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v != 0 {
				rows[y] = append(rows[y], x)
			}
		}
	}
	return rows
}

// PixelCluster holds the pixel coordinates assigned to one lane boundary.
// X[i] and Y[i] describe the same pixel.
type PixelCluster struct {
	X []int
	Y []int
}

// Len returns the number of pixels in the cluster.
func (c PixelCluster) Len() int {
	return len(c.X)
}

// DistinctRows returns the number of distinct y values in the cluster.
func (c PixelCluster) DistinctRows() int {
	seen := make(map[int]struct{}, len(c.Y))
	for _, y := range c.Y {
		seen[y] = struct{}{}
	}
	return len(seen)
}

func (c *PixelCluster) add(x, y int) {
	c.X = append(c.X, x)
	c.Y = append(c.Y, y)
}

// floats returns the cluster coordinates as float64 slices for regression.
func (c PixelCluster) floats() (xs, ys []float64) {
	xs = make([]float64, len(c.X))
	ys = make([]float64, len(c.Y))
	for i := range c.X {
		xs[i] = float64(c.X[i])
		ys[i] = float64(c.Y[i])
	}
	return xs, ys
}
