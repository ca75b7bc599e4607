// Package layout renders print layouts: captured photos placed into the grid
// of a declarative template on a canvas sized from the template's physical
// dimensions and DPI, with optional borders, rounded corners, a per-cell
// frame overlay and a text caption.
package layout

import (
	"fmt"
	"image"
	"image/color"
)

// LayoutType selects how cells are arranged.
type LayoutType string

const (
	Grid       LayoutType = "grid"
	SingleCell LayoutType = "single"
)

// Kind is the product a template prints.
type Kind string

const (
	KindStrip    Kind = "strip"
	KindPostcard Kind = "postcard"
	KindGrid     Kind = "grid"
)

// Fit controls how a photo fills its cell.
type Fit string

const (
	Contain Fit = "contain"
	Cover   Fit = "cover"
)

// TextPosition places the caption vertically.
type TextPosition string

const (
	TextTop    TextPosition = "top"
	TextCenter TextPosition = "center"
	TextBottom TextPosition = "bottom"
)

// TextAlign places the caption horizontally.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

const mmPerInch = 25.4

// Template is a print layout descriptor.
type Template struct {
	// Name is the template's identifier, taken from its file stem.
	Name        string `json:"-" yaml:"-"`
	Title       string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`

	Dimensions    Dimensions    `json:"dimensions" yaml:"dimensions"`
	Layout        GridSettings  `json:"layout" yaml:"layout"`
	Margins       Margins       `json:"margins" yaml:"margins"`
	PhotoSettings PhotoSettings `json:"photo_settings" yaml:"photo_settings"`
	TextOverlay   TextSettings  `json:"text_overlay" yaml:"text_overlay"`
	FrameSettings FrameSettings `json:"frame_settings" yaml:"frame_settings"`
}

type Dimensions struct {
	WidthMM  float64 `json:"width_mm" yaml:"width_mm"`
	HeightMM float64 `json:"height_mm" yaml:"height_mm"`
	DPI      int     `json:"dpi" yaml:"dpi"`
}

type GridSettings struct {
	Type      LayoutType `json:"type" yaml:"type"`
	Columns   int        `json:"columns" yaml:"columns"`
	Rows      int        `json:"rows" yaml:"rows"`
	SpacingMM float64    `json:"spacing_mm" yaml:"spacing_mm"`
	// CellWidthMM and CellHeightMM fix the cell size; zero divides the
	// printable area evenly.
	CellWidthMM  float64 `json:"cell_width_mm,omitempty" yaml:"cell_width_mm,omitempty"`
	CellHeightMM float64 `json:"cell_height_mm,omitempty" yaml:"cell_height_mm,omitempty"`
}

type Margins struct {
	TopMM    float64 `json:"top_mm" yaml:"top_mm"`
	RightMM  float64 `json:"right_mm" yaml:"right_mm"`
	BottomMM float64 `json:"bottom_mm" yaml:"bottom_mm"`
	LeftMM   float64 `json:"left_mm" yaml:"left_mm"`
}

type PhotoSettings struct {
	Fit            Fit     `json:"fit,omitempty" yaml:"fit,omitempty"`
	BorderMM       float64 `json:"border_mm" yaml:"border_mm"`
	BorderColor    string  `json:"border_color,omitempty" yaml:"border_color,omitempty"`
	CornerRadiusMM float64 `json:"corner_radius_mm" yaml:"corner_radius_mm"`
}

type TextSettings struct {
	Enabled         bool         `json:"enabled" yaml:"enabled"`
	Position        TextPosition `json:"position,omitempty" yaml:"position,omitempty"`
	Align           TextAlign    `json:"align,omitempty" yaml:"align,omitempty"`
	FontSizePt      float64      `json:"font_size_pt,omitempty" yaml:"font_size_pt,omitempty"`
	FontColor       string       `json:"font_color,omitempty" yaml:"font_color,omitempty"`
	BackgroundColor string       `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	PaddingMM       float64      `json:"padding_mm,omitempty" yaml:"padding_mm,omitempty"`
}

type FrameSettings struct {
	// Opacity scales the frame's alpha, 0-1. Zero means fully opaque.
	Opacity float64 `json:"opacity,omitempty" yaml:"opacity,omitempty"`
}

// InvalidTemplateError reports a malformed template or a grid that cannot
// hold the requested photos.
type InvalidTemplateError struct {
	Template string
	Reason   string
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid template %q: %s", e.Template, e.Reason)
}

func (t *Template) invalid(format string, args ...any) error {
	return &InvalidTemplateError{Template: t.Name, Reason: fmt.Sprintf(format, args...)}
}

// Px converts millimetres to whole pixels at the template's DPI, truncating.
func (t *Template) Px(mm float64) int {
	// The epsilon keeps exact inch multiples such as 152.4mm from truncating
	// one pixel short.
	return int(mm/mmPerInch*float64(t.Dimensions.DPI) + 1e-9)
}

// PixelSize returns the canvas dimensions in pixels.
func (t *Template) PixelSize() (int, int) {
	return t.Px(t.Dimensions.WidthMM), t.Px(t.Dimensions.HeightMM)
}

// Slots returns how many photos the template places.
func (t *Template) Slots() int {
	if t.Layout.Type == SingleCell {
		return 1
	}
	return t.Layout.Columns * t.Layout.Rows
}

// FitMode returns the photo fit, defaulting to Contain.
func (t *Template) FitMode() Fit {
	if t.PhotoSettings.Fit == "" {
		return Contain
	}
	return t.PhotoSettings.Fit
}

// FrameOpacity returns the frame opacity, defaulting to 1.
func (t *Template) FrameOpacity() float64 {
	if t.FrameSettings.Opacity <= 0 {
		return 1
	}
	return t.FrameSettings.Opacity
}

// Validate checks the template and its computed grid.
func (t *Template) Validate() error {
	d := t.Dimensions
	if d.WidthMM <= 0 || d.HeightMM <= 0 {
		return t.invalid("dimensions must be positive, got %gx%gmm", d.WidthMM, d.HeightMM)
	}
	if d.DPI < 72 || d.DPI > 1200 {
		return t.invalid("dpi %d outside 72-1200", d.DPI)
	}

	switch t.Layout.Type {
	case Grid:
		if t.Layout.Columns < 1 || t.Layout.Rows < 1 {
			return t.invalid("grid needs at least one column and row, got %dx%d", t.Layout.Columns, t.Layout.Rows)
		}
	case SingleCell:
	default:
		return t.invalid("unknown layout type %q", t.Layout.Type)
	}

	m := t.Margins
	if m.TopMM < 0 || m.RightMM < 0 || m.BottomMM < 0 || m.LeftMM < 0 || t.Layout.SpacingMM < 0 {
		return t.invalid("margins and spacing must not be negative")
	}

	switch t.Kind {
	case "", KindGrid:
	case KindStrip:
		if t.Slots() < 2 {
			return t.invalid("strip templates need at least 2 slots, got %d", t.Slots())
		}
	case KindPostcard:
		if t.Slots() != 1 {
			return t.invalid("postcard templates hold exactly 1 photo, got %d slots", t.Slots())
		}
	default:
		return t.invalid("unknown kind %q", t.Kind)
	}

	switch t.FitMode() {
	case Contain, Cover:
	default:
		return t.invalid("unknown photo fit %q", t.PhotoSettings.Fit)
	}
	if t.PhotoSettings.BorderMM < 0 || t.PhotoSettings.CornerRadiusMM < 0 {
		return t.invalid("border and corner radius must not be negative")
	}
	if _, err := ParseColor(t.PhotoSettings.BorderColor, color.White); err != nil {
		return t.invalid("border_color: %v", err)
	}

	ts := t.TextOverlay
	switch ts.Position {
	case "", TextTop, TextCenter, TextBottom:
	default:
		return t.invalid("unknown text position %q", ts.Position)
	}
	switch ts.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
	default:
		return t.invalid("unknown text align %q", ts.Align)
	}
	if ts.FontSizePt < 0 || ts.PaddingMM < 0 {
		return t.invalid("font size and padding must not be negative")
	}
	if _, err := ParseColor(ts.FontColor, color.Black); err != nil {
		return t.invalid("font_color: %v", err)
	}
	if _, err := ParseColor(ts.BackgroundColor, color.Transparent); err != nil {
		return t.invalid("background_color: %v", err)
	}

	if o := t.FrameSettings.Opacity; o < 0 || o > 1 {
		return t.invalid("frame opacity %g outside 0-1", o)
	}

	cells, err := t.Cells()
	if err != nil {
		return err
	}
	border := t.Px(t.PhotoSettings.BorderMM)
	for _, c := range cells {
		if 2*border >= c.Dx() || 2*border >= c.Dy() {
			return t.invalid("border %dpx leaves no room in a %dx%d cell", border, c.Dx(), c.Dy())
		}
	}
	return nil
}

// Cells returns the slot rectangles in canvas pixels, in placement order:
// left to right, then top to bottom.
func (t *Template) Cells() ([]image.Rectangle, error) {
	w, h := t.PixelSize()
	left, top := t.Px(t.Margins.LeftMM), t.Px(t.Margins.TopMM)
	right, bottom := t.Px(t.Margins.RightMM), t.Px(t.Margins.BottomMM)

	area := image.Rect(left, top, w-right, h-bottom)
	if area.Dx() <= 0 || area.Dy() <= 0 {
		return nil, t.invalid("margins leave no printable area on a %dx%d canvas", w, h)
	}

	if t.Layout.Type == SingleCell {
		return []image.Rectangle{area}, nil
	}

	cols, rows := t.Layout.Columns, t.Layout.Rows
	spacing := t.Px(t.Layout.SpacingMM)

	cellW := (area.Dx() - (cols-1)*spacing) / cols
	if t.Layout.CellWidthMM > 0 {
		cellW = t.Px(t.Layout.CellWidthMM)
	}
	cellH := (area.Dy() - (rows-1)*spacing) / rows
	if t.Layout.CellHeightMM > 0 {
		cellH = t.Px(t.Layout.CellHeightMM)
	}
	if cellW <= 0 || cellH <= 0 {
		return nil, t.invalid("grid %dx%d leaves no room for cells", cols, rows)
	}

	gridW := cols*cellW + (cols-1)*spacing
	gridH := rows*cellH + (rows-1)*spacing
	if gridW > area.Dx() || gridH > area.Dy() {
		return nil, t.invalid("grid %dx%dpx exceeds printable area %dx%dpx", gridW, gridH, area.Dx(), area.Dy())
	}

	// Fixed-size cells are centred in the printable area.
	origin := area.Min.Add(image.Pt((area.Dx()-gridW)/2, (area.Dy()-gridH)/2))

	cells := make([]image.Rectangle, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			min := origin.Add(image.Pt(c*(cellW+spacing), r*(cellH+spacing)))
			cells = append(cells, image.Rectangle{Min: min, Max: min.Add(image.Pt(cellW, cellH))})
		}
	}
	return cells, nil
}
