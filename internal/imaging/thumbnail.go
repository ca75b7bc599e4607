package imaging

import (
	"image"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the longest side of a print thumbnail.
const DefaultThumbnailMaxDimension = 400

// Thumbnail returns a copy of img scaled so neither side exceeds maxDimension,
// maintaining aspect ratio. Images already within bounds are copied unscaled.
func Thumbnail(img image.Image, maxDimension int) *image.RGBA {
	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := CalculateThumbnailDimensions(origWidth, origHeight, maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	if newWidth == origWidth && newHeight == origHeight {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	log.Debug().
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Msg("Thumbnail generated")

	return dst
}

// CalculateThumbnailDimensions calculates new dimensions maintaining aspect ratio.
func CalculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}

// Fit returns src scaled to fit inside w x h. With cover set the result fills
// the box exactly and the overflow is cropped around the centre; otherwise
// the whole image is kept and the result may be smaller than the box on one axis.
func Fit(src image.Image, w, h int, cover bool) *image.NRGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 || w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	}

	sx := float64(w) / float64(sw)
	sy := float64(h) / float64(sh)

	if cover {
		scale := max(sx, sy)
		// Crop the source to the box aspect before scaling.
		cw := min(sw, int(float64(w)/scale+0.5))
		ch := min(sh, int(float64(h)/scale+0.5))
		crop := image.Rect(0, 0, cw, ch).Add(sb.Min).Add(image.Pt((sw-cw)/2, (sh-ch)/2))
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
		return dst
	}

	scale := min(sx, sy)
	dw := max(1, int(float64(sw)*scale+0.5))
	dh := max(1, int(float64(sh)*scale+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, min(dw, w), min(dh, h)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	return dst
}
