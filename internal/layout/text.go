package layout

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	defaultFontSizePt = 12
	// textInset is the gap in pixels between a caption and the canvas edge
	// when the margin is too small to hold it.
	textInset = 20
)

var (
	fontOnce   sync.Once
	parsedFont *opentype.Font
	fontErr    error
)

func captionFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = opentype.Parse(goregular.TTF)
	})
	return parsedFont, fontErr
}

// drawCaption renders text on canvas according to the template's text settings.
func drawCaption(canvas *image.RGBA, t *Template, text string) error {
	ts := t.TextOverlay
	fg, err := ParseColor(ts.FontColor, color.Black)
	if err != nil {
		return err
	}
	bg, err := ParseColor(ts.BackgroundColor, color.Transparent)
	if err != nil {
		return err
	}

	f, err := captionFont()
	if err != nil {
		return fmt.Errorf("parse caption font: %w", err)
	}

	size := ts.FontSizePt
	if size <= 0 {
		size = defaultFontSizePt
	}
	cw, ch := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	pad := t.Px(ts.PaddingMM)
	maxWidth := cw - 2*textInset - 2*pad

	face, err := newFace(f, size, t.Dimensions.DPI)
	if err != nil {
		return err
	}
	defer func() { face.Close() }()

	tw := font.MeasureString(face, text).Ceil()
	if tw > maxWidth && maxWidth > 0 {
		// Shrink once so the caption fits the canvas width.
		size = size * float64(maxWidth) / float64(tw)
		smaller, err := newFace(f, size, t.Dimensions.DPI)
		if err != nil {
			return err
		}
		face.Close()
		face = smaller
		tw = font.MeasureString(face, text).Ceil()
	}
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	th := ascent + metrics.Descent.Ceil()

	x := captionX(t, cw, tw)
	y := captionY(t, ch, th, pad)

	if bg.A > 0 {
		box := image.Rect(x-pad, y-pad, x+tw+pad, y+th+pad).Intersect(canvas.Bounds())
		draw.Draw(canvas, box, image.NewUniform(bg), image.Point{}, draw.Over)
	}

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+ascent),
	}
	d.DrawString(text)
	return nil
}

func newFace(f *opentype.Font, sizePt float64, dpi int) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     float64(dpi),
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create caption face: %w", err)
	}
	return face, nil
}

func captionX(t *Template, canvasW, textW int) int {
	switch t.TextOverlay.Align {
	case AlignLeft:
		return max(t.Px(t.Margins.LeftMM), textInset)
	case AlignRight:
		return canvasW - textW - max(t.Px(t.Margins.RightMM), textInset)
	default:
		return (canvasW - textW) / 2
	}
}

// captionY centres top and bottom captions in their margin when it is tall
// enough and otherwise insets them from the edge.
func captionY(t *Template, canvasH, textH, pad int) int {
	switch t.TextOverlay.Position {
	case TextTop:
		if m := t.Px(t.Margins.TopMM); m >= textH+2*pad {
			return (m - textH) / 2
		}
		return textInset
	case TextCenter:
		return (canvasH - textH) / 2
	default:
		if m := t.Px(t.Margins.BottomMM); m >= textH+2*pad {
			return canvasH - m + (m-textH)/2
		}
		return canvasH - textH - textInset
	}
}
