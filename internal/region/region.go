package region

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// Detection bounding boxes arrive on a fixed 0-1000 scale regardless of
// the rendered page size. Box is [yMin, xMin, yMax, xMax] in that scale.
const bboxScale = 1000

// padFraction is the symmetric padding applied around a crop so axis
// labels and captions hugging the box edge are not clipped.
const padFraction = 0.02

// ErrDegenerateBox marks a box whose area collapses after scaling and
// clamping. Callers skip the region; it is never fatal for the page.
var ErrDegenerateBox = errors.New("degenerate bounding box")

// Rect is a pixel-space crop rectangle.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// PixelRect converts a 0-1000-scale box to pixel coordinates for a page
// of the given dimensions, applies padding and clamps to the page bounds.
// Returns ErrDegenerateBox when the clamped box has no area.
func PixelRect(bbox [4]int, w, h int) (Rect, error) {
	if w <= 0 || h <= 0 {
		return Rect{}, fmt.Errorf("invalid page dimensions %dx%d", w, h)
	}

	y0 := bbox[0] * h / bboxScale
	x0 := bbox[1] * w / bboxScale
	y1 := bbox[2] * h / bboxScale
	x1 := bbox[3] * w / bboxScale

	// Inverted or empty boxes are model noise; reject them before padding
	// can inflate them into a plausible-looking region.
	if y1 <= y0 || x1 <= x0 {
		return Rect{}, ErrDegenerateBox
	}

	padX := int(float64(w) * padFraction)
	padY := int(float64(h) * padFraction)

	r := Rect{
		X0: clamp(x0-padX, 0, w),
		Y0: clamp(y0-padY, 0, h),
		X1: clamp(x1+padX, 0, w),
		Y1: clamp(y1+padY, 0, h),
	}
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		return Rect{}, ErrDegenerateBox
	}
	return r, nil
}

// Crop extracts the region described by a 0-1000-scale box from a rendered
// page and returns it as PNG bytes. Degenerate boxes are reported via
// ErrDegenerateBox so callers can skip them without treating the page as
// failed.
func Crop(page image.Image, bbox [4]int) ([]byte, error) {
	if page == nil {
		return nil, fmt.Errorf("nil page image")
	}
	bounds := page.Bounds()
	r, err := PixelRect(bbox, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	sub := image.Rect(bounds.Min.X+r.X0, bounds.Min.Y+r.Y0, bounds.Min.X+r.X1, bounds.Min.Y+r.Y1)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	var cropped image.Image
	if si, ok := page.(subImager); ok {
		cropped = si.SubImage(sub)
	} else {
		// Fallback for image types without SubImage: copy the pixels.
		dst := image.NewRGBA(image.Rect(0, 0, sub.Dx(), sub.Dy()))
		for y := sub.Min.Y; y < sub.Max.Y; y++ {
			for x := sub.Min.X; x < sub.Max.X; x++ {
				dst.Set(x-sub.Min.X, y-sub.Min.Y, page.At(x, y))
			}
		}
		cropped = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
