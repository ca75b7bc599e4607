// Package booth orchestrates a capture session: countdown and shots, filters,
// frame overlay, layout composition, and hand-off to storage, printer and
// mailer.
package booth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/capture"
	"github.com/moonback/photoboot/internal/email"
	"github.com/moonback/photoboot/internal/filter"
	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/imaging"
	"github.com/moonback/photoboot/internal/layout"
	"github.com/moonback/photoboot/internal/metrics"
	"github.com/moonback/photoboot/internal/naming"
	"github.com/moonback/photoboot/internal/printing"
	"github.com/moonback/photoboot/internal/storage"
)

// ErrBusy is returned when a session is started while another is running.
var ErrBusy = errors.New("a capture session is already running")

// FrameSource yields the frame to use for a session. *frames.Registry and
// *frames.Client both satisfy it. A nil descriptor means no frame.
type FrameSource interface {
	Active(ctx context.Context) (*frames.Descriptor, error)
}

// Printer submits a local file to a print queue.
type Printer interface {
	Print(ctx context.Context, path string, copies int) (string, error)
}

// Mailer delivers a print as an attachment.
type Mailer interface {
	SendPrint(ctx context.Context, to, filename string, attachment []byte) error
}

// Deps are the controller's collaborators. Frames, Printer and Mailer may be nil.
type Deps struct {
	Sequencer  *capture.Sequencer
	Templates  *layout.Library
	Composer   *layout.Composer
	Compositor *frames.Compositor
	Frames     FrameSource
	Store      storage.Store
	Printer    Printer
	Mailer     Mailer
}

// Defaults fill in omitted session fields.
type Defaults struct {
	Template   string
	Countdown  int
	StripShots int
	Filter     string
}

// Controller runs one capture session at a time.
type Controller struct {
	deps     Deps
	defaults Defaults

	mu      sync.Mutex
	busy    bool
	session *Session
	cancel  context.CancelFunc // cancels the running session
	last    *Result
	lastErr error
}

// NewController creates a Controller.
func NewController(deps Deps, defaults Defaults) *Controller {
	if defaults.Countdown <= 0 {
		defaults.Countdown = 3
	}
	if defaults.StripShots <= 0 {
		defaults.StripShots = 2
	}
	return &Controller{deps: deps, defaults: defaults}
}

// StartSession validates req and runs the session in the background. Poll
// Status for progress and the result.
func (c *Controller) StartSession(req SessionRequest) (*Session, error) {
	sess, tmpl, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	ctx, ok := c.acquire(context.Background(), sess)
	if !ok {
		log.Warn().Str("session_id", sess.ID).Msg("Capture session already running, ignoring start")
		return nil, ErrBusy
	}

	go c.run(ctx, sess, tmpl)
	return sess, nil
}

// Shoot runs a session and blocks until the print is stored. A cancelled
// session returns capture.ErrCaptureCancelled.
func (c *Controller) Shoot(ctx context.Context, req SessionRequest) (*Result, error) {
	sess, tmpl, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	sessCtx, ok := c.acquire(ctx, sess)
	if !ok {
		return nil, ErrBusy
	}
	return c.run(sessCtx, sess, tmpl)
}

// acquire marks the controller busy and derives the session's context,
// which Cancel cancels.
func (c *Controller) acquire(parent context.Context, sess *Session) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	c.busy = true
	c.session = sess
	c.cancel = cancel
	return ctx, true
}

// run shoots the session and records its outcome. Any failure after the
// session was cancelled is reported as capture.ErrCaptureCancelled.
func (c *Controller) run(ctx context.Context, sess *Session, tmpl *layout.Template) (*Result, error) {
	res, err := c.shoot(ctx, sess, tmpl)
	if err != nil && ctx.Err() != nil {
		res, err = nil, capture.ErrCaptureCancelled
	}
	c.release(res, err)
	return res, err
}

func (c *Controller) release(res *Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.busy = false
	c.session = nil
	switch {
	case err == nil:
		c.last, c.lastErr = res, nil
	case errors.Is(err, capture.ErrCaptureCancelled):
		c.lastErr = nil
	default:
		c.lastErr = err
	}
}

func (c *Controller) shoot(ctx context.Context, sess *Session, tmpl *layout.Template) (*Result, error) {
	start := time.Now()
	logger := log.With().Str("session_id", sess.ID).Str("template", sess.Template).Logger()

	// The frame is fetched once per session; its asset is cached by filename.
	var frame *frames.Descriptor
	if sess.UseFrame {
		frame = c.activeFrame(ctx)
	}
	if ctx.Err() != nil {
		logger.Info().Msg("Capture session cancelled before the countdown")
		return nil, capture.ErrCaptureCancelled
	}

	shots, err := c.deps.Sequencer.Run(ctx, sess.Mode, sess.ShotCount, sess.Countdown)
	if err != nil {
		if errors.Is(err, capture.ErrCaptureCancelled) {
			logger.Info().Msg("Capture session cancelled")
		} else {
			logger.Error().Err(err).Msg("Capture failed")
		}
		return nil, err
	}
	if ctx.Err() != nil {
		logger.Info().Msg("Capture session cancelled after the last shot")
		return nil, capture.ErrCaptureCancelled
	}

	photos := make([]*imaging.Photo, 0, len(shots))
	var shotKeys []string
	for _, shot := range shots {
		p := c.applyFilter(shot.Photo, sess.Filter)
		photos = append(photos, p)

		key, err := c.saveShot(ctx, p, frame)
		if err != nil {
			return nil, err
		}
		shotKeys = append(shotKeys, key)
	}

	res, err := c.composeAndStore(ctx, photos, tmpl, sess.TextOverlay, frame)
	if err != nil {
		return nil, err
	}
	res.SessionID = sess.ID
	res.ShotKeys = shotKeys
	res.Duration = time.Since(start)

	metrics.New(metrics.Namespace).
		Dimension("Template", sess.Template).
		Metric(metrics.ShotCount, float64(len(shots)), metrics.UnitCount).
		Property("sessionId", sess.ID).
		Property("filter", string(sess.Filter)).
		Flush()

	logger.Info().
		Int("shots", len(shots)).
		Str("print_key", res.PrintKey).
		Bool("framed", res.Framed).
		Dur("duration", res.Duration).
		Msg("Capture session complete")
	return res, nil
}

// activeFrame asks the frame source for the active frame. Failures mean no
// frame.
func (c *Controller) activeFrame(ctx context.Context) *frames.Descriptor {
	if c.deps.Frames == nil || c.deps.Compositor == nil {
		return nil
	}
	frame, err := c.deps.Frames.Active(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read active frame, continuing without frame")
		return nil
	}
	if frame != nil {
		log.Debug().Str("frame_id", frame.ID).Str("frame_filename", frame.Filename).Msg("Active frame loaded")
	}
	return frame
}

// applyFilter returns the filtered photo, or p itself when the filter fails.
func (c *Controller) applyFilter(p *imaging.Photo, name filter.Name) *imaging.Photo {
	if name == filter.None || name == "" {
		return p
	}
	img, err := filter.ApplyImage(name, p.Image)
	if err != nil {
		log.Warn().Err(err).Str("filter", string(name)).Int("shot_index", p.ShotIndex).Msg("Filter failed, keeping raw photo")
		metrics.New(metrics.Namespace).Count(metrics.FilterFailure).Property("filter", string(name)).Flush()
		return p
	}
	return p.Derive(img, imaging.StateFiltered)
}

// saveShot stores one shot under uploads/, framed when a frame is active.
func (c *Controller) saveShot(ctx context.Context, p *imaging.Photo, frame *frames.Descriptor) (string, error) {
	out := p
	if frame != nil {
		framed, err := c.deps.Compositor.Composite(ctx, p, frame)
		if err != nil {
			c.frameFallback(err, frame, "shot")
		} else {
			out = framed
		}
	}

	data, contentType, err := out.Encode()
	if err != nil {
		return "", err
	}
	key, err := storage.Key(storage.UploadsPrefix, naming.Upload(out.Extension()))
	if err != nil {
		return "", err
	}
	if err := c.deps.Store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("store shot %d: %w", p.ShotIndex, err)
	}
	return key, nil
}

// composeAndStore renders the print, retrying without the frame when its
// asset cannot be loaded, and stores the print and its thumbnail.
func (c *Controller) composeAndStore(ctx context.Context, photos []*imaging.Photo, tmpl *layout.Template, text string, frame *frames.Descriptor) (*Result, error) {
	opts := layout.ComposeOptions{TextOverlay: text, Frame: frame}
	art, err := c.deps.Composer.Compose(ctx, photos, tmpl, opts)
	fallback := false
	if err != nil && frames.IsAssetLoadError(err) {
		c.frameFallback(err, frame, "print")
		fallback = true
		opts.Frame = nil
		art, err = c.deps.Composer.Compose(ctx, photos, tmpl, opts)
	}
	if err != nil {
		return nil, err
	}

	png, err := art.EncodePNG()
	if err != nil {
		return nil, err
	}
	thumb, err := art.EncodeThumbnail()
	if err != nil {
		return nil, err
	}

	name := naming.Print(tmpl.Name)
	printKey, _ := storage.Key(storage.PrintsPrefix, name)
	thumbKey, _ := storage.Key(storage.PrintsPrefix, naming.Thumbnail(name))
	if err := c.deps.Store.Put(ctx, printKey, bytes.NewReader(png), imaging.MIMEPNG); err != nil {
		return nil, fmt.Errorf("store print: %w", err)
	}
	if err := c.deps.Store.Put(ctx, thumbKey, bytes.NewReader(thumb), imaging.MIMEPNG); err != nil {
		return nil, fmt.Errorf("store thumbnail: %w", err)
	}

	metrics.New(metrics.Namespace).
		Dimension("Template", tmpl.Name).
		Duration(metrics.ComposeMs, art.Duration).
		Property("photosUsed", art.PhotosUsed).
		Property("photosDropped", art.PhotosDropped).
		Flush()

	return &Result{
		Template:      tmpl.Name,
		Filename:      name,
		PrintKey:      printKey,
		ThumbnailKey:  thumbKey,
		PhotosUsed:    art.PhotosUsed,
		PhotosDropped: art.PhotosDropped,
		Framed:        art.Framed,
		FrameFallback: fallback,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (c *Controller) frameFallback(err error, frame *frames.Descriptor, stage string) {
	log.Warn().Err(err).
		Str("frame_filename", frame.Filename).
		Str("stage", stage).
		Msg("Frame unavailable, continuing without frame")
	metrics.New(metrics.Namespace).
		Count(metrics.FrameFallback).
		Property("frameFilename", frame.Filename).
		Property("stage", stage).
		Flush()
}

// ComposeUploaded builds a print from already-encoded photos, in the order
// given.
func (c *Controller) ComposeUploaded(ctx context.Context, uploads [][]byte, req ComposeRequest) (*Result, error) {
	tmpl, err := c.template(req.Template)
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, layout.ErrNoPhotos
	}

	name := c.parseFilter(req.Filter)
	photos := make([]*imaging.Photo, 0, len(uploads))
	for i, data := range uploads {
		img, format, err := imaging.DecodeBytes(data)
		if err != nil {
			return nil, &frames.AssetLoadError{Filename: fmt.Sprintf("photo %d", i), Err: err}
		}
		log.Debug().Int("shot_index", i).Str("format", format).Msg("Uploaded photo decoded")
		photos = append(photos, c.applyFilter(imaging.NewPhoto(img, i), name))
	}

	var frame *frames.Descriptor
	if req.UseActiveFrame {
		frame = c.activeFrame(ctx)
	}
	start := time.Now()
	res, err := c.composeAndStore(ctx, photos, tmpl, req.TextOverlay, frame)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	c.mu.Lock()
	c.last = res
	c.mu.Unlock()
	return res, nil
}

// Print sends a stored print to the printer.
func (c *Controller) Print(ctx context.Context, filename string, copies int) (string, error) {
	if c.deps.Printer == nil {
		return "", printing.ErrDisabled
	}
	key, err := storage.Key(storage.PrintsPrefix, filename)
	if err != nil {
		return "", err
	}
	path, cleanup, err := c.deps.Store.Fetch(ctx, key)
	if err != nil {
		return "", err
	}
	defer cleanup()

	jobID, err := c.deps.Printer.Print(ctx, path, copies)
	if err != nil {
		return "", err
	}
	metrics.New(metrics.Namespace).
		Metric(metrics.PrintCount, float64(copies), metrics.UnitCount).
		Property("filename", filename).
		Flush()
	return jobID, nil
}

// Email sends a stored print to one recipient.
func (c *Controller) Email(ctx context.Context, to, filename string) error {
	if c.deps.Mailer == nil {
		return email.ErrDisabled
	}
	key, err := storage.Key(storage.PrintsPrefix, filename)
	if err != nil {
		return err
	}
	rc, err := c.deps.Store.Open(ctx, key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(rc, email.MaxAttachmentBytes+1))
	rc.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	if err := c.deps.Mailer.SendPrint(ctx, to, filename, data); err != nil {
		return err
	}
	metrics.New(metrics.Namespace).Count(metrics.EmailCount).Flush()
	return nil
}

// Cancel stops the running session, if any. A session that has not reached
// its countdown yet is stopped before any shot is taken.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.deps.Sequencer.Cancel()
}

// Pause suspends the countdown.
func (c *Controller) Pause() error {
	return c.deps.Sequencer.Pause()
}

// Resume continues a paused countdown.
func (c *Controller) Resume() error {
	return c.deps.Sequencer.Resume()
}

// Status reports the sequencer state and the last finished session.
func (c *Controller) Status() Status {
	st := Status{Status: c.deps.Sequencer.Status()}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		// The session goroutine may not have reached the sequencer yet.
		st.Running = true
	}
	if c.session != nil {
		st.SessionID = c.session.ID
	}
	st.LastResult = c.last
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// LastResult returns the most recent print, or nil.
func (c *Controller) LastResult() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ClearFrameCache drops cached frame assets so edited frames are reloaded.
func (c *Controller) ClearFrameCache() {
	if c.deps.Compositor != nil {
		c.deps.Compositor.Cache().Clear()
	}
}
