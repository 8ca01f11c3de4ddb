package lane

import (
	"errors"
	"fmt"
)

var (
	// ErrDetectionFailed is returned when no usable boundary pixels could be
	// found for a frame.
	ErrDetectionFailed = errors.New("lane detection failed")

	// ErrFit is returned when a pixel cluster cannot support a quadratic fit.
	ErrFit = errors.New("lane fit failed")

	// ErrEmptyHistogram is returned by the window search when one half of the
	// bottom-half column histogram has no active pixels, so the boundary base
	// position is undefined. It wraps ErrDetectionFailed.
	ErrEmptyHistogram = fmt.Errorf("%w: empty histogram", ErrDetectionFailed)

	// ErrDegenerateGeometry is returned when the fitted boundaries do not
	// describe a lane (right boundary not to the right of the left one at the
	// row closest to the vehicle).
	ErrDegenerateGeometry = errors.New("degenerate lane geometry")

	// ErrGeometryMismatch is returned when a mask does not match the image
	// size the tracker was configured for.
	ErrGeometryMismatch = errors.New("mask geometry mismatch")
)
