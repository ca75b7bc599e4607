package naming

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func fixedClock(t *testing.T) {
	t.Helper()
	prev := Clock
	Clock = func() time.Time { return time.Date(2026, 10, 18, 21, 5, 9, 0, time.UTC) }
	t.Cleanup(func() { Clock = prev })
}

func TestUpload(t *testing.T) {
	fixedClock(t)
	tests := []struct {
		ext  string
		want *regexp.Regexp
	}{
		{".PNG", regexp.MustCompile(`^photo_20261018_210509_[0-9a-f]{8}\.png$`)},
		{"", regexp.MustCompile(`^photo_20261018_210509_[0-9a-f]{8}\.jpg$`)},
	}
	for _, tt := range tests {
		if got := Upload(tt.ext); !tt.want.MatchString(got) {
			t.Errorf("Upload(%q) = %q, want match %s", tt.ext, got, tt.want)
		}
	}
	if Upload(".jpg") == Upload(".jpg") {
		t.Error("Upload() returned the same name twice")
	}
}

func TestPrint(t *testing.T) {
	fixedClock(t)
	tests := []struct {
		template string
		prefix   string
	}{
		{"strip_2x6", "print_strip_2x6_20261018_210509_"},
		{"../etc/passwd", "print__etc_passwd_20261018_210509_"},
		{"", "print_custom_20261018_210509_"},
	}
	for _, tt := range tests {
		got := Print(tt.template)
		if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, ".png") {
			t.Errorf("Print(%q) = %q, want prefix %q", tt.template, got, tt.prefix)
		}
	}
}

func TestThumbnail(t *testing.T) {
	if got := Thumbnail("print_a.png"); got != "print_a_thumb.png" {
		t.Errorf("Thumbnail() = %q, want print_a_thumb.png", got)
	}
	if !IsThumbnail(Thumbnail("photo.jpg")) || IsThumbnail("photo.jpg") {
		t.Error("IsThumbnail() disagrees with Thumbnail()")
	}
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID("sess-")
	if !strings.HasPrefix(id, "sess-") || len(id) != len("sess-")+36 {
		t.Errorf("NewSessionID() = %q", id)
	}
}
