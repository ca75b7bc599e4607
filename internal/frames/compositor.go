package frames

import (
	"context"
	"image"
	"image/color"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/moonback/photoboot/internal/geometry"
	"github.com/moonback/photoboot/internal/imaging"
)

// Compositor draws frame overlays onto photos.
type Compositor struct {
	cache *Cache
}

// NewCompositor creates a Compositor reading assets through cache.
func NewCompositor(cache *Cache) *Compositor {
	return &Compositor{cache: cache}
}

// Cache returns the compositor's asset cache.
func (c *Compositor) Cache() *Cache { return c.cache }

// Composite returns a new framed photo. A nil frame returns photo unchanged.
// Asset failures are returned as *AssetLoadError; deciding to continue with
// the unframed photo is left to the caller.
func (c *Compositor) Composite(ctx context.Context, photo *imaging.Photo, frame *Descriptor) (*imaging.Photo, error) {
	return c.CompositeWithOpacity(ctx, photo, frame, 1)
}

// CompositeWithOpacity is Composite with the overlay's alpha scaled by
// opacity. Values of 1 or more draw the frame as is; 0 or less leave photo
// unchanged without loading the asset.
func (c *Compositor) CompositeWithOpacity(ctx context.Context, photo *imaging.Photo, frame *Descriptor, opacity float64) (*imaging.Photo, error) {
	if frame == nil || opacity <= 0 {
		return photo, nil
	}

	// Hold our own reference so a concurrent Clear cannot affect this draw.
	overlay, err := c.cache.Get(ctx, frame.Filename)
	if err != nil {
		return nil, err
	}

	out := Overlay(photo.Image, overlay, frame.Placement(), opacity)

	log.Debug().
		Str("photo_id", photo.ID).
		Str("frame_filename", frame.Filename).
		Int("frame_size", frame.Size).
		Str("position", string(frame.Position)).
		Msg("Frame applied")

	return photo.Derive(out, imaging.StateFramed), nil
}

// Overlay returns a copy of base with frame drawn over it using source-over
// compositing: transparent frame pixels let the photo through and opaque
// ones replace it. The frame's alpha is scaled by opacity, clamped to [0, 1];
// at 0 the result is a plain copy of base.
func Overlay(base *image.NRGBA, frame image.Image, p geometry.Placement, opacity float64) *image.NRGBA {
	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	size := geometry.ResolveSize(p, bw, bh)
	at := geometry.ResolvePosition(p, bw, bh)

	dst := imaging.Clone(base)
	if size.Width <= 0 || size.Height <= 0 || opacity <= 0 {
		return dst
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	target := image.Rectangle{Min: image.Point(at), Max: image.Point(at).Add(image.Pt(size.Width, size.Height))}.
		Add(base.Bounds().Min)

	if opacity < 1 {
		mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
		draw.DrawMask(dst, target, scaled, image.Point{}, mask, image.Point{}, draw.Over)
		return dst
	}
	draw.Draw(dst, target, scaled, image.Point{}, draw.Over)
	return dst
}
