// Package imaging holds the photo asset type shared by the capture, frame,
// and layout packages, plus decoding, encoding, thumbnail, and EXIF helpers.
//
// A Photo is immutable once published: every transform (filter, frame)
// produces a new Photo with a new pixel buffer and an advanced State.
package imaging

import (
	"image"
	"image/draw"
	"time"

	"github.com/google/uuid"
)

// State is the processing stage a photo has reached.
type State string

const (
	StateRaw      State = "raw"
	StateFiltered State = "filtered"
	StateFramed   State = "framed"
)

// Photo is one captured or processed image.
type Photo struct {
	ID         string
	ShotIndex  int
	State      State
	CapturedAt time.Time
	// Image is non-premultiplied RGBA, matching a canvas ImageData buffer.
	// It must not be modified after the Photo is published.
	Image *image.NRGBA
}

// NewPhoto wraps img as a raw photo, copying it into a fresh NRGBA buffer
// whose bounds start at the origin.
func NewPhoto(img image.Image, shotIndex int) *Photo {
	return &Photo{
		ID:         uuid.NewString(),
		ShotIndex:  shotIndex,
		State:      StateRaw,
		CapturedAt: time.Now().UTC(),
		Image:      ToNRGBA(img),
	}
}

// Derive returns a new Photo carrying img in the given state. Identity and
// ordering fields are inherited from p.
func (p *Photo) Derive(img *image.NRGBA, state State) *Photo {
	return &Photo{
		ID:         p.ID,
		ShotIndex:  p.ShotIndex,
		State:      state,
		CapturedAt: p.CapturedAt,
		Image:      img,
	}
}

// Width returns the photo width in pixels.
func (p *Photo) Width() int { return p.Image.Bounds().Dx() }

// Height returns the photo height in pixels.
func (p *Photo) Height() int { return p.Image.Bounds().Dy() }

// ToNRGBA copies img into a new NRGBA whose bounds start at (0,0).
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone returns a deep copy of img.
func Clone(img *image.NRGBA) *image.NRGBA {
	dst := &image.NRGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(dst.Pix, img.Pix)
	return dst
}
