// Package storage persists uploaded photos and composed prints, either in a
// local directory or in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Key prefixes for the two kinds of stored files.
const (
	UploadsPrefix = "uploads"
	PrintsPrefix  = "prints"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored file.
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Name returns the last path element of the key.
func (o Object) Name() string { return path.Base(o.Key) }

// Store is a flat key/value file store. Keys are slash-separated.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Fetch makes the object available as a local file. cleanup removes any
	// temporary copy and must always be called.
	Fetch(ctx context.Context, key string) (localPath string, cleanup func(), err error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// Key joins a prefix and a bare filename, rejecting names that would escape
// the prefix.
func Key(prefix, filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return path.Join(prefix, filename), nil
}

// ValidKey reports whether key is relative, clean and free of "..".
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	if path.Clean(key) != key {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return false
		}
	}
	return true
}
