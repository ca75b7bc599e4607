// Package frames manages decorative overlay frames: their descriptors and
// the SQLite registry that enforces a single active frame, an explicit
// decoded-asset cache, and the compositor that draws a frame over a photo.
package frames

import (
	"errors"
	"fmt"
	"time"

	"github.com/moonback/photoboot/internal/geometry"
)

// ErrNotFound is returned when a frame id is not in the registry.
var ErrNotFound = errors.New("frame not found")

// Descriptor is a named overlay asset and its placement rules.
type Descriptor struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Filename    string            `json:"filename"`
	Position    geometry.Position `json:"position"`
	X           float64           `json:"x,omitempty"`
	Y           float64           `json:"y,omitempty"`
	Size        int               `json:"size"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
	CreatedBy   string            `json:"created_by,omitempty"`
}

// Placement returns the geometric part of the descriptor.
func (d *Descriptor) Placement() geometry.Placement {
	return geometry.Placement{
		Position: d.Position,
		X:        d.X,
		Y:        d.Y,
		Size:     d.Size,
		Width:    d.Width,
		Height:   d.Height,
	}
}

// Validate checks the descriptor's placement fields.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return errors.New("frame name is required")
	}
	if d.Filename == "" {
		return errors.New("frame filename is required")
	}
	if !geometry.ValidPosition(d.Position) {
		return fmt.Errorf("invalid frame position %q", d.Position)
	}
	if d.Size < geometry.MinSize || d.Size > geometry.MaxSize {
		return fmt.Errorf("frame size %d outside %d-%d", d.Size, geometry.MinSize, geometry.MaxSize)
	}
	if d.Position == geometry.Custom {
		if d.X < 0 || d.X > 100 || d.Y < 0 || d.Y > 100 {
			return fmt.Errorf("custom offsets (%g, %g) must be within 0-100", d.X, d.Y)
		}
	}
	return nil
}

// AssetLoadError reports that a frame asset could not be fetched or decoded.
type AssetLoadError struct {
	Filename string
	Err      error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load frame asset %q: %v", e.Filename, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }
