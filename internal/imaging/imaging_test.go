package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCalculateThumbnailDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		max           int
		wantW, wantH  int
	}{
		{"already small", 300, 200, 400, 300, 200},
		{"landscape", 1800, 600, 400, 400, 133},
		{"portrait", 600, 1800, 400, 133, 400},
		{"square", 1000, 1000, 400, 400, 400},
		{"extreme strip keeps a pixel", 4000, 2, 400, 400, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := CalculateThumbnailDimensions(tt.width, tt.height, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("CalculateThumbnailDimensions() = (%d, %d), want (%d, %d)", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestThumbnail_LongestSide(t *testing.T) {
	thumb := Thumbnail(solid(1200, 1800, color.NRGBA{10, 20, 30, 255}), DefaultThumbnailMaxDimension)
	if got := thumb.Bounds().Dy(); got != 400 {
		t.Errorf("thumbnail height = %d, want 400", got)
	}
	if got := thumb.Bounds().Dx(); got != 266 {
		t.Errorf("thumbnail width = %d, want 266", got)
	}
}

func TestFit(t *testing.T) {
	src := solid(800, 600, color.NRGBA{200, 0, 0, 255})

	contain := Fit(src, 400, 400, false)
	if b := contain.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("Fit(contain) = %v, want 400x300", b)
	}

	cover := Fit(src, 400, 400, true)
	if b := cover.Bounds(); b.Dx() != 400 || b.Dy() != 400 {
		t.Errorf("Fit(cover) = %v, want 400x400", b)
	}
	if c := cover.NRGBAAt(200, 200); c.R < 190 || c.A != 255 {
		t.Errorf("Fit(cover) centre = %v, want opaque red", c)
	}
}

func TestPhotoEncode_FramedIsLossless(t *testing.T) {
	img := solid(4, 4, color.NRGBA{1, 2, 3, 255})
	img.SetNRGBA(1, 1, color.NRGBA{250, 5, 9, 255})
	raw := NewPhoto(img, 0)

	_, mime, err := raw.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if mime != MIMEJPEG {
		t.Errorf("raw Encode() mime = %q, want %q", mime, MIMEJPEG)
	}

	framed := raw.Derive(Clone(raw.Image), StateFramed)
	data, mime, err := framed.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if mime != MIMEPNG || framed.Extension() != ".png" {
		t.Errorf("framed Encode() = %q/%q, want %q/.png", mime, framed.Extension(), MIMEPNG)
	}

	decoded, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	r, g, b, _ := decoded.At(1, 1).RGBA()
	if r>>8 != 250 || g>>8 != 5 || b>>8 != 9 {
		t.Errorf("pixel (1,1) = (%d,%d,%d), want (250,5,9)", r>>8, g>>8, b>>8)
	}
}

func TestDerive_KeepsIdentity(t *testing.T) {
	p := NewPhoto(solid(2, 2, color.NRGBA{A: 255}), 3)
	d := p.Derive(Clone(p.Image), StateFiltered)
	if d.ID != p.ID || d.ShotIndex != 3 || d.State != StateFiltered {
		t.Errorf("Derive() = %+v, want same id, shot 3, filtered", d)
	}
	if &d.Image.Pix[0] == &p.Image.Pix[0] {
		t.Error("Derive() shares the source buffer")
	}
}

func TestNewPhoto_NormalisesBounds(t *testing.T) {
	sub := solid(10, 10, color.NRGBA{9, 9, 9, 255}).SubImage(image.Rect(5, 5, 8, 9))
	p := NewPhoto(sub, 0)
	if p.Image.Bounds() != image.Rect(0, 0, 3, 4) {
		t.Errorf("bounds = %v, want (0,0)-(3,4)", p.Image.Bounds())
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, _, err := DecodeBytes([]byte("not an image"))
	if err == nil {
		t.Fatal("DecodeBytes() error = nil, want error")
	}
}

// inflatedPNG encodes a tiny PNG and rewrites its IHDR to claim w x h.
func inflatedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data, err := EncodePNG(solid(2, 2, color.NRGBA{1, 2, 3, 255}))
	if err != nil {
		t.Fatal(err)
	}
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	data := inflatedPNG(t, 16000, 16000)
	img, _, err := DecodeBytes(data)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("DecodeBytes() error = %v, want ErrTooLarge", err)
	}
	if img != nil {
		t.Error("DecodeBytes() returned an image for an oversized header")
	}
}

func TestDecode_PixelLimitConfigurable(t *testing.T) {
	defer SetMaxPixels(0)

	data, err := EncodePNG(solid(40, 30, color.NRGBA{1, 2, 3, 255}))
	if err != nil {
		t.Fatal(err)
	}
	SetMaxPixels(1000)
	if _, _, err := DecodeBytes(data); !errors.Is(err, ErrTooLarge) {
		t.Errorf("DecodeBytes(40x30) with limit 1000 error = %v, want ErrTooLarge", err)
	}
	SetMaxPixels(1200)
	img, format, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes(40x30) with limit 1200 error = %v", err)
	}
	if format != "png" || img.Bounds().Dx() != 40 {
		t.Errorf("decoded %s %v, want png 40 wide", format, img.Bounds())
	}
	SetMaxPixels(-1)
	if got := MaxPixels(); got != DefaultMaxPixels {
		t.Errorf("MaxPixels() after reset = %d, want %d", got, DefaultMaxPixels)
	}
}

func TestEncodingError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&EncodingError{Format: "png", Err: inner})
	if !errors.Is(err, inner) {
		t.Error("errors.Is(EncodingError, inner) = false, want true")
	}
	var encErr *EncodingError
	if !errors.As(err, &encErr) || encErr.Format != "png" {
		t.Errorf("errors.As() = %v, want png EncodingError", encErr)
	}
}
