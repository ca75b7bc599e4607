package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"sync/atomic"

	_ "image/gif"

	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for photos that carry no frame overlay.
const JPEGQuality = 92

// MIME types produced by Encode.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// EncodingError reports a failure to turn pixels into bytes.
type EncodingError struct {
	Format string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DefaultMaxPixels bounds the canvas Decode will allocate, about a 50 MP photo.
const DefaultMaxPixels = 50_000_000

// ErrTooLarge is returned by Decode when the header declares more pixels than
// the configured limit.
var ErrTooLarge = errors.New("image exceeds pixel limit")

var maxPixels atomic.Int64

func init() {
	maxPixels.Store(DefaultMaxPixels)
}

// SetMaxPixels changes the decode limit. n <= 0 restores DefaultMaxPixels.
func SetMaxPixels(n int64) {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	maxPixels.Store(n)
}

// MaxPixels returns the current decode limit.
func MaxPixels() int64 {
	return maxPixels.Load()
}

// Decode reads a PNG, JPEG, GIF, or WebP image. The header is checked
// against MaxPixels before any pixel buffer is allocated.
func Decode(r io.Reader) (image.Image, string, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels() {
		return nil, "", fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxPixels())
	}

	img, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// Encode serialises the photo. Framed photos are always written as PNG so the
// overlay's anti-aliased edges survive; other photos use JPEG.
func (p *Photo) Encode() ([]byte, string, error) {
	if p.State == StateFramed {
		data, err := EncodePNG(p.Image)
		return data, MIMEPNG, err
	}
	data, err := EncodeJPEG(p.Image, JPEGQuality)
	return data, MIMEJPEG, err
}

// Extension returns the file extension matching what Encode produces.
func (p *Photo) Extension() string {
	if p.State == StateFramed {
		return ".png"
	}
	return ".jpg"
}

// EncodePNG writes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, &EncodingError{Format: "png", Err: err}
	}
	return buf.Bytes(), nil
}

// EncodeJPEG writes img with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &EncodingError{Format: "jpeg", Err: err}
	}
	return buf.Bytes(), nil
}
