package raster

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

var (
	// ErrDecode marks files that cannot be interpreted as an image.
	ErrDecode = errors.New("raster: undecodable image")
	// ErrDegenerateRange marks rasters whose intensities are all equal;
	// normalization would divide by zero.
	ErrDegenerateRange = errors.New("raster: zero intensity range")
)

// Sample is an immutable grid of normalized intensities in [0,1],
// row-major. The grid is horizontally mirrored relative to standard
// image coordinates because the target map format is mirrored.
type Sample struct {
	Width  int
	Height int

	values  []float64
	rounded []int
}

// Load reads an image file, mirrors it horizontally, optionally resizes
// each axis independently (a target <= 0 keeps the source size on that
// axis), reduces it to a single intensity channel and normalizes the
// intensities to [0,1].
func Load(path string, targetWidth, targetHeight int) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return FromImage(img, targetWidth, targetHeight)
}

// FromImage builds a Sample from an already decoded image. Mirroring
// happens before any resize.
func FromImage(img image.Image, targetWidth, targetHeight int) (*Sample, error) {
	gray := mirrorIntensity(img)
	if targetWidth > 0 && targetWidth != gray.Bounds().Dx() {
		gray = resize(gray, targetWidth, gray.Bounds().Dy())
	}
	if targetHeight > 0 && targetHeight != gray.Bounds().Dy() {
		gray = resize(gray, gray.Bounds().Dx(), targetHeight)
	}
	return normalize(gray)
}

// NewSample wraps already-normalized values in raster scan order.
// Callers hand over ownership of the slice. Useful for programmatic
// grids and tests; Load and FromImage are the usual entry points.
func NewSample(width, height int, values []float64) *Sample {
	s := &Sample{
		Width:   width,
		Height:  height,
		values:  values,
		rounded: make([]int, len(values)),
	}
	for i, v := range values {
		s.rounded[i] = int(math.RoundToEven(v))
	}
	return s
}

// Values returns the normalized intensities in raster scan order.
func (s *Sample) Values() []float64 { return s.values }

// Rounded returns the 0/1 variant of the normalized intensities.
// Ties round half to even.
func (s *Sample) Rounded() []int { return s.rounded }

// At returns the normalized intensity at cell (x, y).
func (s *Sample) At(x, y int) float64 { return s.values[y*s.Width+x] }

func mirrorIntensity(img image.Image) *image.Gray16 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			dst.Set(w-1-x, y, c)
		}
	}
	return dst
}

func resize(src *image.Gray16, w, h int) *image.Gray16 {
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func normalize(gray *image.Gray16) (*Sample, error) {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	raw := make([]int, 0, w*h)
	lo, hi := math.MaxInt32, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := int(gray.Gray16At(x, y).Y)
			raw = append(raw, v)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi == lo {
		return nil, fmt.Errorf("%w: all %d samples equal %d", ErrDegenerateRange, len(raw), lo)
	}

	s := &Sample{
		Width:   w,
		Height:  h,
		values:  make([]float64, len(raw)),
		rounded: make([]int, len(raw)),
	}
	span := float64(hi - lo)
	for i, v := range raw {
		nv := float64(v-lo) / span
		s.values[i] = nv
		s.rounded[i] = int(math.RoundToEven(nv))
	}
	return s, nil
}
