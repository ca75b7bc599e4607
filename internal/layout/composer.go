package layout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/imaging"
)

// ErrNoPhotos is returned when Compose is called without photos.
var ErrNoPhotos = errors.New("no photos to compose")

// ComposeOptions are the per-call extras of a composition.
type ComposeOptions struct {
	// TextOverlay is drawn when non-empty and the template enables text.
	TextOverlay string
	// Frame, when set, is composited onto each photo after it is fitted
	// to its cell and before it is placed.
	Frame *frames.Descriptor
}

// PrintArtifact is a finished composition.
type PrintArtifact struct {
	Image     *image.RGBA
	Thumbnail *image.RGBA
	Template  string
	DPI       int
	// PhotosUsed counts the photos placed; PhotosDropped counts the ones
	// beyond the template's slots.
	PhotosUsed    int
	PhotosDropped int
	Framed        bool
	Duration      time.Duration
}

// EncodePNG returns the print as PNG bytes.
func (a *PrintArtifact) EncodePNG() ([]byte, error) {
	return imaging.EncodePNG(a.Image)
}

// EncodeThumbnail returns the thumbnail as PNG bytes.
func (a *PrintArtifact) EncodeThumbnail() ([]byte, error) {
	return imaging.EncodePNG(a.Thumbnail)
}

// Composer renders templates.
type Composer struct {
	compositor *frames.Compositor
	// ThumbnailSize is the thumbnail's longest side. Zero means
	// imaging.DefaultThumbnailMaxDimension.
	ThumbnailSize int
}

// NewComposer creates a Composer. compositor may be nil when frames are
// never requested.
func NewComposer(compositor *frames.Compositor) *Composer {
	return &Composer{compositor: compositor}
}

// Compose places photos into tmpl's cells in capture order, left to right
// then top to bottom. Photos beyond the template's slot count are dropped
// and logged. Template problems are returned as *InvalidTemplateError and a
// frame that cannot be loaded as *frames.AssetLoadError; nothing is drawn
// in either case.
func (c *Composer) Compose(ctx context.Context, photos []*imaging.Photo, tmpl *Template, opts ComposeOptions) (*PrintArtifact, error) {
	start := time.Now()
	if tmpl == nil {
		return nil, &InvalidTemplateError{Reason: "no template"}
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}

	cells, err := tmpl.Cells()
	if err != nil {
		return nil, err
	}

	used := photos
	if len(photos) > len(cells) {
		used = photos[:len(cells)]
		log.Warn().
			Str("template", tmpl.Name).
			Int("photos", len(photos)).
			Int("slots", len(cells)).
			Msg("More photos than template slots, extra photos dropped")
	}

	if opts.Frame != nil {
		if c.compositor == nil {
			return nil, errors.New("frame requested but no compositor configured")
		}
		// Load the asset up front so a missing frame fails before any drawing.
		if _, err := c.compositor.Cache().Get(ctx, opts.Frame.Filename); err != nil {
			return nil, err
		}
	}

	border := tmpl.Px(tmpl.PhotoSettings.BorderMM)
	borderColor, _ := ParseColor(tmpl.PhotoSettings.BorderColor, color.White)
	radius := tmpl.Px(tmpl.PhotoSettings.CornerRadiusMM)
	cover := tmpl.FitMode() == Cover

	w, h := tmpl.PixelSize()
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, p := range used {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cell := cells[i]
		inner := cell.Inset(border)

		fitted := p.Derive(imaging.Fit(p.Image, inner.Dx(), inner.Dy(), cover), p.State)
		if opts.Frame != nil {
			framed, err := c.compositor.CompositeWithOpacity(ctx, fitted, opts.Frame, tmpl.FrameOpacity())
			if err != nil {
				return nil, err
			}
			fitted = framed
		}

		tile := image.NewNRGBA(image.Rect(0, 0, cell.Dx(), cell.Dy()))
		if border > 0 {
			draw.Draw(tile, tile.Bounds(), image.NewUniform(borderColor), image.Point{}, draw.Src)
		}
		fb := fitted.Image.Bounds()
		at := inner.Min.Sub(cell.Min).Add(image.Pt((inner.Dx()-fb.Dx())/2, (inner.Dy()-fb.Dy())/2))
		draw.Draw(tile, fb.Sub(fb.Min).Add(at), fitted.Image, fb.Min, draw.Over)

		if radius > 0 {
			draw.DrawMask(canvas, cell, tile, image.Point{}, roundedMask(cell.Dx(), cell.Dy(), radius), image.Point{}, draw.Over)
		} else {
			draw.Draw(canvas, cell, tile, image.Point{}, draw.Over)
		}

		log.Debug().
			Str("template", tmpl.Name).
			Int("slot", i).
			Int("shot_index", p.ShotIndex).
			Str("cell", cell.String()).
			Msg("Photo placed")
	}

	if opts.TextOverlay != "" && tmpl.TextOverlay.Enabled {
		if err := drawCaption(canvas, tmpl, opts.TextOverlay); err != nil {
			return nil, fmt.Errorf("draw caption: %w", err)
		}
	}

	thumbSize := c.ThumbnailSize
	if thumbSize <= 0 {
		thumbSize = imaging.DefaultThumbnailMaxDimension
	}

	artifact := &PrintArtifact{
		Image:         canvas,
		Thumbnail:     imaging.Thumbnail(canvas, thumbSize),
		Template:      tmpl.Name,
		DPI:           tmpl.Dimensions.DPI,
		PhotosUsed:    len(used),
		PhotosDropped: len(photos) - len(used),
		Framed:        opts.Frame != nil,
		Duration:      time.Since(start),
	}

	log.Info().
		Str("template", tmpl.Name).
		Int("width", w).
		Int("height", h).
		Int("photos_used", artifact.PhotosUsed).
		Bool("framed", artifact.Framed).
		Dur("duration", artifact.Duration).
		Msg("Layout composed")
	return artifact, nil
}

// roundedMask is opaque except outside the quarter circles of radius r at
// each corner.
func roundedMask(w, h, r int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	draw.Draw(mask, mask.Bounds(), image.Opaque, image.Point{}, draw.Src)

	r = min(r, w/2, h/2)
	rr := float64(r * r)
	corner := func(v, size int) float64 {
		switch {
		case v < r:
			return float64(r-v) - 0.5
		case v >= size-r:
			return float64(v-(size-r)) + 0.5
		}
		return -1
	}
	for y := 0; y < h; y++ {
		cy := corner(y, h)
		if cy < 0 {
			continue
		}
		for x := 0; x < w; x++ {
			cx := corner(x, w)
			if cx < 0 {
				continue
			}
			if cx*cx+cy*cy > rr {
				mask.SetAlpha(x, y, color.Alpha{})
			}
		}
	}
	return mask
}
