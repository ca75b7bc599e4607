package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/imaging"
)

// AssetLoader fetches the raw bytes of a frame asset by filename.
type AssetLoader interface {
	LoadAsset(ctx context.Context, filename string) ([]byte, error)
}

// DirLoader reads frame assets from a local directory.
type DirLoader struct {
	Dir string
}

// LoadAsset reads Dir/filename. Names containing path separators are rejected.
func (l *DirLoader) LoadAsset(ctx context.Context, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !SafeFilename(filename) {
		return nil, fmt.Errorf("invalid frame filename %q", filename)
	}
	return os.ReadFile(filepath.Join(l.Dir, filename))
}

// SafeFilename reports whether name is a bare file name.
func SafeFilename(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// Cache holds decoded frame images keyed by filename. Entries live until
// Clear is called; there is no expiry. Callers receive their own reference
// to the decoded image, so clearing while a composite is in flight is safe.
type Cache struct {
	loader AssetLoader

	mu     sync.Mutex
	images map[string]image.Image
}

// NewCache creates an empty cache backed by loader.
func NewCache(loader AssetLoader) *Cache {
	return &Cache{
		loader: loader,
		images: make(map[string]image.Image),
	}
}

// Get returns the decoded asset, loading and decoding it on a miss.
// Failures are returned as *AssetLoadError and are not cached.
func (c *Cache) Get(ctx context.Context, filename string) (image.Image, error) {
	c.mu.Lock()
	img, ok := c.images[filename]
	c.mu.Unlock()
	if ok {
		return img, nil
	}

	data, err := c.loader.LoadAsset(ctx, filename)
	if err != nil {
		return nil, &AssetLoadError{Filename: filename, Err: err}
	}
	img, _, err = imaging.DecodeBytes(data)
	if err != nil {
		return nil, &AssetLoadError{Filename: filename, Err: err}
	}

	c.mu.Lock()
	c.images[filename] = img
	c.mu.Unlock()

	log.Debug().
		Str("frame_filename", filename).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Frame asset cached")
	return img, nil
}

// Clear drops every cached image.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.images)
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
	log.Debug().Int("entries", n).Msg("Frame cache cleared")
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// IsAssetLoadError reports whether err is, or wraps, an *AssetLoadError.
func IsAssetLoadError(err error) bool {
	var ale *AssetLoadError
	return errors.As(err, &ale)
}
