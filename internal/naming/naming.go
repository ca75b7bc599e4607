// Package naming generates file names and session IDs for stored media.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Tests replace it.
var Clock = time.Now

const stampLayout = "20060102_150405"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// NewSessionID returns a random capture session ID with the given prefix,
// e.g. "sess-".
func NewSessionID(prefix string) string {
	return prefix + uuid.NewString()
}

// shortID is the first eight hex digits of a random UUID.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Upload names an uploaded photo: photo_<stamp>_<id><ext>. ext is taken as
// given after lower-casing; an empty ext becomes ".jpg".
func Upload(ext string) string {
	ext = strings.ToLower(ext)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("photo_%s_%s%s", Clock().Format(stampLayout), shortID(), ext)
}

// Print names a composed print: print_<template>_<stamp>_<id>.png.
func Print(template string) string {
	t := unsafeChars.ReplaceAllString(template, "_")
	if t == "" {
		t = "custom"
	}
	return fmt.Sprintf("print_%s_%s_%s.png", t, Clock().Format(stampLayout), shortID())
}

// Thumbnail derives the thumbnail name for a stored file.
func Thumbnail(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_thumb.png"
}

// IsThumbnail reports whether name was produced by Thumbnail.
func IsThumbnail(name string) bool {
	return strings.HasSuffix(name, "_thumb.png")
}
