// Package printing sends composed prints to a CUPS queue.
package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned when no printer is configured.
var ErrDisabled = errors.New("printing disabled")

// MaxCopies bounds a single print request.
const MaxCopies = 10

// DefaultTimeout bounds one lp invocation.
const DefaultTimeout = 30 * time.Second

// Printer submits files with lp. A zero Printer is disabled.
type Printer struct {
	// Queue is the CUPS destination (lp -d). Empty disables printing.
	Queue string
	// Command is the lp binary. Empty means "lp" from PATH.
	Command string
	// Options are extra -o values, e.g. "media=4x6".
	Options []string
}

// Enabled reports whether a queue is configured.
func (p *Printer) Enabled() bool {
	return p != nil && p.Queue != ""
}

// Args builds the lp argument list for path.
func (p *Printer) Args(path string, copies int) []string {
	args := []string{"-d", p.Queue, "-n", strconv.Itoa(copies)}
	for _, o := range p.Options {
		args = append(args, "-o", o)
	}
	return append(args, path)
}

// Print submits path and returns the job ID reported by lp, if any.
func (p *Printer) Print(ctx context.Context, path string, copies int) (string, error) {
	if !p.Enabled() {
		return "", ErrDisabled
	}
	if copies < 1 || copies > MaxCopies {
		return "", fmt.Errorf("copies must be between 1 and %d, got %d", MaxCopies, copies)
	}

	cmdName := p.Command
	if cmdName == "" {
		cmdName = "lp"
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdName, p.Args(path, copies)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", cmdName, err, strings.TrimSpace(stderr.String()))
	}

	jobID := parseJobID(stdout.String())
	log.Info().
		Str("queue", p.Queue).
		Str("path", path).
		Int("copies", copies).
		Str("job_id", jobID).
		Dur("duration", time.Since(start)).
		Msg("Print job submitted")
	return jobID, nil
}

// parseJobID extracts "queue-42" from lp's "request id is queue-42 (1 file(s))".
func parseJobID(out string) string {
	const marker = "request id is "
	i := strings.Index(out, marker)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(out[i+len(marker):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
