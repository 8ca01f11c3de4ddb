// Package maskio loads binary lane masks from image files.
//
// Masks are expected to be single-channel or grayscale renderings of the
// bird's-eye binary threshold: any pixel whose luminance exceeds the
// threshold is active. PNG, BMP and TIFF are supported.
package maskio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/banshee-data/lanetrack/internal/lane"
)

// DefaultThreshold is the 8-bit luminance above which a pixel is active.
const DefaultThreshold = 127

var extensions = map[string]bool{
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsMaskFile reports whether name has a supported image extension.
func IsMaskFile(name string) bool {
	return extensions[strings.ToLower(path.Ext(name))]
}

// Decode reads an image from r and thresholds it into a BinaryMask.
func Decode(r io.Reader, threshold uint8) (*lane.BinaryMask, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	m := FromImage(img, threshold)
	if lane.Enabled(lane.StreamTrace) {
		// Count walks the whole mask
		lane.Tracef("maskio: decoded %s mask %dx%d, %d active px", format, m.Width, m.Height, m.Count())
	}
	return m, nil
}

// FromImage thresholds img on luminance. The image's bounds origin maps to
// mask (0, 0).
func FromImage(img image.Image, threshold uint8) *lane.BinaryMask {
	b := img.Bounds()
	m := lane.NewBinaryMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y > threshold {
				m.Set(x-b.Min.X, y-b.Min.Y)
			}
		}
	}
	return m
}

// ToImage renders mask as a black and white Gray image.
func ToImage(m *lane.BinaryMask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != 0 {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// Load opens name in fsys and decodes it.
func Load(fsys fs.FS, name string, threshold uint8) (*lane.BinaryMask, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f, threshold)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// ListFrames returns the mask files directly under dir in lexical order,
// which is the frame order for numbered sequences.
func ListFrames(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list masks: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsMaskFile(e.Name()) {
			continue
		}
		names = append(names, path.Join(dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}
