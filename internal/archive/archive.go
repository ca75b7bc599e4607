// Package archive bundles stored prints into a ZIP for download.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/storage"
)

// MethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const MethodZstd uint16 = 93

func init() {
	// PNG prints are already compressed, so a mid-range level is enough.
	zip.RegisterCompressor(MethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zip.RegisterDecompressor(MethodZstd, zstd.ZipDecompressor())
}

// ErrEmpty is returned when none of the requested keys could be bundled.
var ErrEmpty = errors.New("no files to archive")

// MaxEntries bounds the number of files in one bundle.
const MaxEntries = 100

// Options control a bundle.
type Options struct {
	// Method is the ZIP method for entries. Zero means MethodZstd; use
	// zip.Deflate for archive tools without Zstandard support.
	Method uint16
}

// Write streams the objects named by keys from store into a ZIP on w. Keys
// that cannot be opened are logged and skipped; duplicate base names get a
// numeric suffix. It returns the number of entries written.
func Write(ctx context.Context, w io.Writer, store storage.Store, keys []string, opts Options) (int, error) {
	if len(keys) > MaxEntries {
		return 0, fmt.Errorf("too many files: %d (max %d)", len(keys), MaxEntries)
	}
	method := opts.Method
	if method == 0 {
		method = MethodZstd
	}

	zw := zip.NewWriter(w)
	used := make(map[string]int)
	written := 0

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		body, err := store.Open(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to open file for ZIP, skipping")
			continue
		}

		header := &zip.FileHeader{
			Name:   uniqueName(used, path.Base(key)),
			Method: method,
		}
		header.SetModTime(time.Now())

		entry, err := zw.CreateHeader(header)
		if err != nil {
			body.Close()
			return written, fmt.Errorf("create ZIP entry for %s: %w", key, err)
		}
		if _, err := io.Copy(entry, body); err != nil {
			body.Close()
			return written, fmt.Errorf("write to ZIP for %s: %w", key, err)
		}
		body.Close()
		written++
	}

	if written == 0 {
		return 0, ErrEmpty
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("close ZIP writer: %w", err)
	}

	log.Info().Int("entries", written).Uint16("method", method).Msg("Archive written")
	return written, nil
}

func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", name[:len(name)-len(ext)], n, ext)
}
