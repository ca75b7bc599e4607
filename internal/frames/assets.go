package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Library couples the registry with the directory holding frame PNGs.
type Library struct {
	Registry  *Registry
	AssetsDir string
}

// NewFrame carries the admin-supplied fields for Library.Add.
type NewFrame struct {
	Name        string
	Description string
	Descriptor  Descriptor // placement fields: Position, X, Y, Size, Active
	CreatedBy   string
}

// Add stores a PNG asset as <uuid>.png and registers it. Only PNG is
// accepted because frames depend on alpha transparency.
func (l *Library) Add(ctx context.Context, nf NewFrame, data []byte) (*Descriptor, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame asset must be a PNG image: %w", err)
	}

	if err := os.MkdirAll(l.AssetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}

	d := nf.Descriptor
	d.ID = uuid.NewString()
	d.Name = nf.Name
	d.Description = nf.Description
	d.CreatedBy = nf.CreatedBy
	d.Filename = d.ID + ".png"
	d.Width = cfg.Width
	d.Height = cfg.Height
	if d.Size == 0 {
		d.Size = 100
	}

	path := filepath.Join(l.AssetsDir, d.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write frame asset: %w", err)
	}

	if err := l.Registry.Create(ctx, &d); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove orphaned frame asset")
		}
		return nil, err
	}

	log.Info().
		Str("frame_id", d.ID).
		Str("name", d.Name).
		Int("width", d.Width).
		Int("height", d.Height).
		Bool("active", d.Active).
		Msg("Frame created")
	return &d, nil
}

// Remove deletes the frame and its asset file.
func (l *Library) Remove(ctx context.Context, id string) error {
	d, err := l.Registry.Delete(ctx, id)
	if err != nil {
		return err
	}
	path := filepath.Join(l.AssetsDir, d.Filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove frame asset: %w", err)
	}
	log.Info().Str("frame_id", id).Str("name", d.Name).Msg("Frame deleted")
	return nil
}

// Loader returns an AssetLoader reading from the library's directory.
func (l *Library) Loader() *DirLoader {
	return &DirLoader{Dir: l.AssetsDir}
}
