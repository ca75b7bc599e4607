// Package filter applies named colour transforms to 8-bit RGBA pixel buffers.
//
// Buffers are laid out like a canvas ImageData: four bytes per pixel,
// non-premultiplied, rows packed without padding. Every filter leaves the
// alpha channel untouched and clamps results to [0, 255]; there is no gamma
// correction. Apply never mutates its input.
package filter

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// Name identifies a filter.
type Name string

const (
	None    Name = "none"
	Vintage Name = "vintage"
	BW      Name = "bw"
	Warm    Name = "warm"
)

// ErrUnknownFilter is returned for names outside Names().
var ErrUnknownFilter = errors.New("unknown filter")

// ErrBufferSize is returned when the buffer length does not match width*height*4.
var ErrBufferSize = errors.New("pixel buffer size mismatch")

type pixelFunc func(r, g, b float64) (float64, float64, float64)

var filters = map[Name]pixelFunc{
	Vintage: sepia,
	BW:      grayscale,
	Warm:    warm,
}

// Names lists every supported filter, identity first.
func Names() []Name {
	return []Name{None, Vintage, BW, Warm}
}

// Parse converts a user-supplied string to a Name. The empty string means None.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if n == "" {
		return None, nil
	}
	if n == None {
		return n, nil
	}
	if _, ok := filters[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
	return n, nil
}

// Apply returns a filtered copy of buf, which holds width x height RGBA pixels.
func Apply(name Name, buf []byte, width, height int) ([]byte, error) {
	if width < 0 || height < 0 || len(buf) != width*height*4 {
		return nil, fmt.Errorf("%w: have %d bytes for %dx%d", ErrBufferSize, len(buf), width, height)
	}

	out := make([]byte, len(buf))
	copy(out, buf)

	if name == None || name == "" {
		return out, nil
	}
	fn, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}

	transform(out, fn)
	return out, nil
}

// ApplyImage returns a filtered copy of img.
func ApplyImage(name Name, img *image.NRGBA) (*image.NRGBA, error) {
	b := img.Bounds()
	packed := pack(img)
	out, err := Apply(name, packed, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{
		Pix:    out,
		Stride: b.Dx() * 4,
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}, nil
}

// pack returns img's pixels without row padding.
func pack(img *image.NRGBA) []byte {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	if img.Stride == rowLen && b.Min == (image.Point{}) {
		return img.Pix[:rowLen*b.Dy()]
	}
	out := make([]byte, 0, rowLen*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[start:start+rowLen]...)
	}
	return out
}

func transform(pix []byte, fn pixelFunc) {
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := fn(float64(pix[i]), float64(pix[i+1]), float64(pix[i+2]))
		pix[i] = clamp(r)
		pix[i+1] = clamp(g)
		pix[i+2] = clamp(b)
	}
}

func sepia(r, g, b float64) (float64, float64, float64) {
	return 0.393*r + 0.769*g + 0.189*b,
		0.349*r + 0.686*g + 0.168*b,
		0.272*r + 0.534*g + 0.131*b
}

func grayscale(r, g, b float64) (float64, float64, float64) {
	gray := 0.299*r + 0.587*g + 0.114*b
	return gray, gray, gray
}

func warm(r, g, b float64) (float64, float64, float64) {
	return r * 1.1, g * 1.05, b * 0.9
}

// clamp rounds to the nearest integer and saturates to a byte, like a
// Uint8ClampedArray store.
func clamp(v float64) byte {
	v = math.Round(v)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}
