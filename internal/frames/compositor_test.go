package frames

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/moonback/photoboot/internal/geometry"
	"github.com/moonback/photoboot/internal/imaging"
)

type countingLoader struct {
	data  map[string][]byte
	calls atomic.Int32
}

func (l *countingLoader) LoadAsset(_ context.Context, filename string) ([]byte, error) {
	l.calls.Add(1)
	data, ok := l.data[filename]
	if !ok {
		return nil, errors.New("no such asset")
	}
	return data, nil
}

func bluePhoto(w, h int) *imaging.Photo {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
		}
	}
	return imaging.NewPhoto(img, 0)
}

// borderFrame is opaque red on a 2px border and fully transparent inside.
func borderFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < 2 || y < 2 || x >= w-2 || y >= h-2 {
				img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			}
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := imaging.EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	return data
}

func TestComposite_NilFramePassesThrough(t *testing.T) {
	c := NewCompositor(NewCache(&countingLoader{}))
	photo := bluePhoto(8, 6)

	got, err := c.Composite(context.Background(), photo, nil)
	if err != nil {
		t.Fatalf("Composite(nil) error = %v", err)
	}
	if got != photo {
		t.Error("Composite(nil) returned a different photo")
	}
}

func TestComposite_EdgeToEdgeTransparency(t *testing.T) {
	loader := &countingLoader{data: map[string][]byte{"border.png": borderFrame(t, 40, 30)}}
	c := NewCompositor(NewCache(loader))
	photo := bluePhoto(40, 30)

	frame := &Descriptor{Filename: "border.png", Position: geometry.Custom, X: 50, Y: 50, Size: 100}
	got, err := c.Composite(context.Background(), photo, frame)
	if err != nil {
		t.Fatalf("Composite() error = %v", err)
	}

	if got.State != imaging.StateFramed {
		t.Errorf("State = %q, want framed", got.State)
	}
	if c := got.Image.NRGBAAt(0, 0); c.R != 255 || c.B != 0 {
		t.Errorf("border pixel = %v, want opaque red", c)
	}
	if c := got.Image.NRGBAAt(20, 15); c != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("interior pixel = %v, want photo blue", c)
	}
	if c := photo.Image.NRGBAAt(0, 0); c.B != 255 {
		t.Error("Composite() mutated the input photo")
	}
}

func TestComposite_CornerPlacement(t *testing.T) {
	loader := &countingLoader{data: map[string][]byte{"badge.png": encodePNG(t, solidNRGBA(10, 10, color.NRGBA{0, 255, 0, 255}))}}
	c := NewCompositor(NewCache(loader))

	frame := &Descriptor{Filename: "badge.png", Position: geometry.BottomRight, Size: 25}
	got, err := c.Composite(context.Background(), bluePhoto(80, 40), frame)
	if err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	// 25% of 80 = 20 wide, 10 tall, at (60, 30).
	if c := got.Image.NRGBAAt(70, 35); c.G != 255 {
		t.Errorf("badge pixel = %v, want green", c)
	}
	if c := got.Image.NRGBAAt(59, 35); c.B != 255 || c.G != 0 {
		t.Errorf("pixel left of badge = %v, want blue", c)
	}
}

func TestComposite_MissingAssetReturnsAssetLoadError(t *testing.T) {
	c := NewCompositor(NewCache(&countingLoader{}))
	_, err := c.Composite(context.Background(), bluePhoto(4, 4), &Descriptor{Filename: "gone.png", Size: 100})

	var ale *AssetLoadError
	if !errors.As(err, &ale) {
		t.Fatalf("Composite() error = %v, want *AssetLoadError", err)
	}
	if ale.Filename != "gone.png" {
		t.Errorf("Filename = %q, want gone.png", ale.Filename)
	}
	if !IsAssetLoadError(err) {
		t.Error("IsAssetLoadError() = false, want true")
	}
}

func TestComposite_CorruptAsset(t *testing.T) {
	loader := &countingLoader{data: map[string][]byte{"bad.png": []byte("garbage")}}
	c := NewCompositor(NewCache(loader))
	_, err := c.Composite(context.Background(), bluePhoto(4, 4), &Descriptor{Filename: "bad.png", Size: 100})
	if !IsAssetLoadError(err) {
		t.Fatalf("Composite() error = %v, want AssetLoadError", err)
	}
	if n := c.Cache().Len(); n != 0 {
		t.Errorf("cache Len() = %d after failure, want 0", n)
	}
}

func TestCache_HitsAndClear(t *testing.T) {
	loader := &countingLoader{data: map[string][]byte{"f.png": borderFrame(t, 8, 8)}}
	cache := NewCache(loader)
	ctx := context.Background()

	first, err := cache.Get(ctx, "f.png")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := cache.Get(ctx, "f.png"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", cache.Len())
	}
	// A reference taken before Clear stays usable.
	if first.Bounds().Dx() != 8 {
		t.Errorf("held image width = %d, want 8", first.Bounds().Dx())
	}

	if _, err := cache.Get(ctx, "f.png"); err != nil {
		t.Fatalf("Get() after Clear error = %v", err)
	}
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader calls after Clear = %d, want 2", n)
	}
}

func TestOverlay_Opacity(t *testing.T) {
	base := bluePhoto(4, 4).Image
	red := solidNRGBA(4, 4, color.NRGBA{255, 0, 0, 255})

	out := Overlay(base, red, geometry.Placement{Size: 100}, 0.5)
	c := out.NRGBAAt(1, 1)
	if c.R < 120 || c.R > 135 || c.B < 120 || c.B > 135 {
		t.Errorf("half-opacity pixel = %v, want roughly even red/blue", c)
	}
}

func TestOverlay_OpacityBounds(t *testing.T) {
	base := bluePhoto(4, 4).Image
	red := solidNRGBA(4, 4, color.NRGBA{255, 0, 0, 255})
	tests := []struct {
		opacity float64
		want    color.NRGBA
	}{
		{0, color.NRGBA{0, 0, 255, 255}},
		{-0.5, color.NRGBA{0, 0, 255, 255}},
		{1, color.NRGBA{255, 0, 0, 255}},
		{2, color.NRGBA{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		out := Overlay(base, red, geometry.Placement{Size: 100}, tt.opacity)
		if got := out.NRGBAAt(2, 2); got != tt.want {
			t.Errorf("Overlay(opacity %v) pixel = %v, want %v", tt.opacity, got, tt.want)
		}
	}
}

func TestCompositeWithOpacity_ZeroSkipsAsset(t *testing.T) {
	loader := &countingLoader{data: map[string][]byte{"f.png": encodePNG(t, solidNRGBA(4, 4, color.NRGBA{255, 0, 0, 255}))}}
	c := NewCompositor(NewCache(loader))
	photo := bluePhoto(4, 4)

	got, err := c.CompositeWithOpacity(context.Background(), photo, &Descriptor{Filename: "f.png", Size: 100}, 0)
	if err != nil {
		t.Fatalf("CompositeWithOpacity() error = %v", err)
	}
	if got != photo {
		t.Error("CompositeWithOpacity(0) returned a new photo, want the input")
	}
	if n := loader.calls.Load(); n != 0 {
		t.Errorf("loader calls = %d, want 0", n)
	}
}

func TestDirLoader_RejectsTraversal(t *testing.T) {
	l := &DirLoader{Dir: t.TempDir()}
	for _, name := range []string{"../etc/passwd", "a/b.png", "..", ""} {
		if _, err := l.LoadAsset(context.Background(), name); err == nil {
			t.Errorf("LoadAsset(%q) error = nil, want error", name)
		}
	}
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
