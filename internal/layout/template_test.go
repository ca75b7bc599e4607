package layout

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

// tenPxPerMM returns a grid template at 254 dpi, where one millimetre is
// exactly ten pixels.
func tenPxPerMM(widthMM, heightMM float64, cols, rows int) *Template {
	return &Template{
		Name:       "test",
		Dimensions: Dimensions{WidthMM: widthMM, HeightMM: heightMM, DPI: 254},
		Layout:     GridSettings{Type: Grid, Columns: cols, Rows: rows},
	}
}

func TestBuiltinTemplates(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	tests := []struct {
		name          string
		width, height int
		slots         int
		kind          Kind
	}{
		{"grid_2x2", 1800, 1200, 4, KindGrid},
		{"postcard_4x6", 1800, 1200, 1, KindPostcard},
		{"strip_2x6", 1800, 600, 2, KindStrip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := lib.Get(tt.name)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			w, h := tmpl.PixelSize()
			if w != tt.width || h != tt.height {
				t.Errorf("PixelSize() = %dx%d, want %dx%d", w, h, tt.width, tt.height)
			}
			if got := tmpl.Slots(); got != tt.slots {
				t.Errorf("Slots() = %d, want %d", got, tt.slots)
			}
			if tmpl.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tmpl.Kind, tt.kind)
			}
		})
	}

	names := lib.Names()
	if len(names) != 3 || names[0] != "grid_2x2" {
		t.Errorf("Names() = %v, want sorted built-ins", names)
	}
}

func TestCells_GridWithMarginsAndSpacing(t *testing.T) {
	tmpl := tenPxPerMM(100, 60, 2, 2)
	tmpl.Margins = Margins{TopMM: 5, RightMM: 5, BottomMM: 10, LeftMM: 5}
	tmpl.Layout.SpacingMM = 2

	cells, err := tmpl.Cells()
	if err != nil {
		t.Fatalf("Cells() error = %v", err)
	}
	want := []image.Rectangle{
		image.Rect(50, 50, 490, 265),
		image.Rect(510, 50, 950, 265),
		image.Rect(50, 285, 490, 500),
		image.Rect(510, 285, 950, 500),
	}
	if len(cells) != len(want) {
		t.Fatalf("len(Cells()) = %d, want %d", len(cells), len(want))
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("Cells()[%d] = %v, want %v", i, cells[i], want[i])
		}
	}
}

func TestCells_FixedCellSizeIsCentred(t *testing.T) {
	tmpl := tenPxPerMM(100, 60, 2, 1)
	tmpl.Margins = Margins{TopMM: 5, RightMM: 5, BottomMM: 10, LeftMM: 5}
	tmpl.Layout.SpacingMM = 2
	tmpl.Layout.CellWidthMM = 30
	tmpl.Layout.CellHeightMM = 20

	cells, err := tmpl.Cells()
	if err != nil {
		t.Fatalf("Cells() error = %v", err)
	}
	want := []image.Rectangle{image.Rect(190, 175, 490, 375), image.Rect(510, 175, 810, 375)}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("Cells()[%d] = %v, want %v", i, cells[i], want[i])
		}
	}
}

func TestCells_SingleUsesPrintableArea(t *testing.T) {
	tmpl := tenPxPerMM(40, 30, 0, 0)
	tmpl.Layout.Type = SingleCell
	tmpl.Margins = Margins{TopMM: 1, RightMM: 2, BottomMM: 3, LeftMM: 4}

	cells, err := tmpl.Cells()
	if err != nil {
		t.Fatalf("Cells() error = %v", err)
	}
	if len(cells) != 1 || cells[0] != image.Rect(40, 10, 380, 270) {
		t.Errorf("Cells() = %v, want [(40,10)-(380,270)]", cells)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *Template)
	}{
		{"zero dpi", func(t *Template) { t.Dimensions.DPI = 0 }},
		{"negative width", func(t *Template) { t.Dimensions.WidthMM = -1 }},
		{"unknown layout", func(t *Template) { t.Layout.Type = "mosaic" }},
		{"no columns", func(t *Template) { t.Layout.Columns = 0 }},
		{"postcard with two slots", func(t *Template) { t.Kind = KindPostcard }},
		{"strip with one slot", func(t *Template) { t.Kind = KindStrip; t.Layout.Columns = 1 }},
		{"unknown kind", func(t *Template) { t.Kind = "poster" }},
		{"margins eat canvas", func(t *Template) { t.Margins.LeftMM = 10; t.Margins.RightMM = 10 }},
		{"border fills cell", func(t *Template) { t.PhotoSettings.BorderMM = 5 }},
		{"bad border colour", func(t *Template) { t.PhotoSettings.BorderColor = "#12345" }},
		{"bad font colour", func(t *Template) { t.TextOverlay.FontColor = "chartreuse-ish" }},
		{"unknown fit", func(t *Template) { t.PhotoSettings.Fit = "stretch" }},
		{"unknown text position", func(t *Template) { t.TextOverlay.Position = "left" }},
		{"opacity above one", func(t *Template) { t.FrameSettings.Opacity = 2 }},
		{"fixed cells too wide", func(t *Template) { t.Layout.CellWidthMM = 15 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := tenPxPerMM(20, 10, 2, 1)
			if err := tmpl.Validate(); err != nil {
				t.Fatalf("base template invalid: %v", err)
			}
			tt.mutate(tmpl)
			err := tmpl.Validate()
			var ite *InvalidTemplateError
			if !errors.As(err, &ite) {
				t.Errorf("Validate() error = %v, want *InvalidTemplateError", err)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"", color.NRGBA{0, 0, 0, 255}, false},
		{"#FFFFFF", color.NRGBA{255, 255, 255, 255}, false},
		{"#f00", color.NRGBA{255, 0, 0, 255}, false},
		{"#00000099", color.NRGBA{0, 0, 0, 0x99}, false},
		{"White", color.NRGBA{255, 255, 255, 255}, false},
		{"#zzzzzz", color.NRGBA{}, true},
		{"teal-ish", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in, color.Black)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLibrary_LoadDirOverridesAndSkipsInvalid(t *testing.T) {
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}

	dir := t.TempDir()
	override := `
name: Tall strip
kind: strip
dimensions: {width_mm: 50.8, height_mm: 152.4, dpi: 300}
layout: {type: grid, columns: 1, rows: 3, spacing_mm: 2}
margins: {top_mm: 3, right_mm: 3, bottom_mm: 12, left_mm: 3}
photo_settings: {fit: cover}
text_overlay: {enabled: true, position: bottom}
`
	files := map[string]string{
		"strip_2x6.yaml": override,
		"broken.json":    `{"dimensions": `,
		"bad_kind.json":  `{"kind":"postcard","dimensions":{"width_mm":100,"height_mm":100,"dpi":300},"layout":{"type":"grid","columns":2,"rows":1}}`,
		"notes.txt":      "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := lib.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if n != 1 {
		t.Errorf("LoadDir() loaded %d, want 1", n)
	}

	strip, err := lib.Get("strip_2x6")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if strip.Slots() != 3 || strip.Title != "Tall strip" {
		t.Errorf("override not applied: slots=%d title=%q", strip.Slots(), strip.Title)
	}
	if _, err := lib.Get("broken"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Get(broken) error = %v, want ErrTemplateNotFound", err)
	}
}
