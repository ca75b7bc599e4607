package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/imaging"
)

// Camera produces one still image per call.
type Camera interface {
	Capture(ctx context.Context) (image.Image, error)
}

// CameraFunc adapts a function to the Camera interface.
type CameraFunc func(ctx context.Context) (image.Image, error)

// Capture calls f(ctx).
func (f CameraFunc) Capture(ctx context.Context) (image.Image, error) { return f(ctx) }

// DefaultDevice is the V4L2 device grabbed when none is configured.
const DefaultDevice = "/dev/video0"

// CommandCamera grabs a still by running an external command that writes a
// PNG or JPEG image to stdout. The zero value runs ffmpeg against DefaultDevice.
type CommandCamera struct {
	// Command is the executable; empty means ffmpeg from PATH.
	Command string
	// Args replaces the default ffmpeg arguments when non-empty.
	Args []string
	// Device is used by the default ffmpeg arguments.
	Device string
}

// DefaultArgs returns the ffmpeg arguments used when Args is empty.
func DefaultArgs(device string) []string {
	if device == "" {
		device = DefaultDevice
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-i", device,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

// Describe names the command and device for startup logs.
func (c *CommandCamera) Describe() string {
	cmd := c.Command
	if cmd == "" {
		cmd = "ffmpeg"
	}
	if len(c.Args) > 0 {
		return cmd + " (custom args)"
	}
	device := c.Device
	if device == "" {
		device = DefaultDevice
	}
	return cmd + " " + device
}

// Capture runs the command and decodes its stdout.
func (c *CommandCamera) Capture(ctx context.Context) (image.Image, error) {
	path := c.Command
	if path == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		path = p
	}
	args := c.Args
	if len(args) == 0 {
		args = DefaultArgs(c.Device)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("command", path).Strs("args", args).Msg("Grabbing still")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("camera command failed: %w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}

	img, format, err := imaging.DecodeBytes(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decode camera output: %w", err)
	}
	log.Debug().
		Str("format", format).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Still captured")
	return img, nil
}
