package imaging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Metadata is the subset of EXIF recorded for uploaded photos.
type Metadata struct {
	CameraMake  string    `json:"camera_make,omitempty"`
	CameraModel string    `json:"camera_model,omitempty"`
	DateTaken   time.Time `json:"date_taken,omitempty"`
	HasDate     bool      `json:"-"`
}

// Camera returns "make model", or "" when neither is known.
func (m *Metadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// ReadMetadata extracts EXIF metadata with imagemeta. Browser captures carry
// no EXIF block, so callers should treat an error as "no metadata".
func ReadMetadata(r io.ReadSeeker) (*Metadata, error) {
	exifData, err := imagemeta.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	meta := &Metadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}

	// Priority: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		meta.DateTaken = exifData.DateTimeOriginal()
		meta.HasDate = true
	case !exifData.CreateDate().IsZero():
		meta.DateTaken = exifData.CreateDate()
		meta.HasDate = true
	case !exifData.ModifyDate().IsZero():
		meta.DateTaken = exifData.ModifyDate()
		meta.HasDate = true
	}

	log.Debug().
		Str("camera", meta.Camera()).
		Bool("has_date", meta.HasDate).
		Msg("Image metadata extraction complete")

	return meta, nil
}
