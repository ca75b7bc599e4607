package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/booth"
	"github.com/moonback/photoboot/internal/capture"
	"github.com/moonback/photoboot/internal/config"
	"github.com/moonback/photoboot/internal/email"
	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/imaging"
	"github.com/moonback/photoboot/internal/layout"
	"github.com/moonback/photoboot/internal/printing"
	"github.com/moonback/photoboot/internal/storage"
)

// app is the wired booth shared by serve, shoot and compose.
type app struct {
	store      storage.Store
	storeDesc  string
	library    *frames.Library // nil when frames come from a remote booth
	frames     booth.FrameSource
	templates  *layout.Library
	compositor *frames.Compositor
	sequencer  *capture.Sequencer
	camera     *capture.CommandCamera
	printer    *printing.Printer
	mailer     *email.Mailer
	controller *booth.Controller
}

func openStore(ctx context.Context, c *config.Config) (storage.Store, string, error) {
	switch c.Storage.Backend {
	case config.BackendS3:
		s, err := storage.NewS3Store(ctx, c.Storage.S3Bucket, c.Storage.S3Prefix, c.Storage.S3Region)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("s3://%s/%s", c.Storage.S3Bucket, c.Storage.S3Prefix), nil
	default:
		s, err := storage.NewLocalStore(c.Storage.Dir)
		if err != nil {
			return nil, "", err
		}
		return s, c.Storage.Dir, nil
	}
}

// openLibrary opens the local frame registry and its asset directory.
func openLibrary(c *config.Config) (*frames.Library, error) {
	reg, err := frames.OpenRegistry(c.Frames.DBPath)
	if err != nil {
		return nil, err
	}
	return &frames.Library{Registry: reg, AssetsDir: c.Frames.AssetsDir}, nil
}

func openTemplates(c *config.Config) (*layout.Library, error) {
	lib, err := layout.NewLibrary()
	if err != nil {
		return nil, err
	}
	if c.Templates.Dir != "" {
		n, err := lib.LoadDir(c.Templates.Dir)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("dir", c.Templates.Dir).Int("count", n).Msg("Templates loaded from directory")
	}
	if _, err := lib.Get(c.Templates.Default); err != nil {
		return nil, fmt.Errorf("default template: %w", err)
	}
	return lib, nil
}

func newApp(ctx context.Context, c *config.Config) (*app, error) {
	if c.NeedsSecrets() {
		client, err := config.NewSSMClient(ctx, c.Storage.S3Region)
		if err != nil {
			return nil, err
		}
		if err := c.ResolveSecrets(ctx, client); err != nil {
			return nil, err
		}
	}

	imaging.SetMaxPixels(c.Server.MaxImagePixels)

	a := &app{}
	var err error
	if a.store, a.storeDesc, err = openStore(ctx, c); err != nil {
		return nil, err
	}
	if a.templates, err = openTemplates(c); err != nil {
		return nil, err
	}

	var loader frames.AssetLoader
	if c.Frames.RemoteURL != "" {
		client := frames.NewClient(c.Frames.RemoteURL)
		a.frames, loader = client, client
	} else {
		if a.library, err = openLibrary(c); err != nil {
			return nil, err
		}
		a.frames, loader = a.library.Registry, a.library.Loader()
	}
	a.compositor = frames.NewCompositor(frames.NewCache(loader))

	a.camera = &capture.CommandCamera{
		Command: c.Capture.Command,
		Args:    c.Capture.Args,
		Device:  c.Capture.Device,
	}
	a.sequencer = capture.NewSequencer(a.camera)

	deps := booth.Deps{
		Sequencer:  a.sequencer,
		Templates:  a.templates,
		Composer:   layout.NewComposer(a.compositor),
		Compositor: a.compositor,
		Frames:     a.frames,
		Store:      a.store,
	}
	// A nil pointer in an interface would look enabled to the controller.
	a.printer = &printing.Printer{Queue: c.Printer.Queue, Command: c.Printer.Command, Options: c.Printer.Options}
	if a.printer.Enabled() {
		deps.Printer = a.printer
	}
	a.mailer = &email.Mailer{
		Host:      c.Email.Host,
		Port:      c.Email.Port,
		Username:  c.Email.Username,
		Password:  c.Email.Password,
		From:      c.Email.From,
		EventName: c.Email.EventName,
	}
	if a.mailer.Enabled() {
		deps.Mailer = a.mailer
	}

	a.controller = booth.NewController(deps, booth.Defaults{
		Template:   c.Templates.Default,
		Countdown:  c.Capture.Countdown,
		StripShots: c.Capture.StripShots,
		Filter:     c.Capture.Filter,
	})
	return a, nil
}

func (a *app) Close() {
	if a.library != nil {
		if err := a.library.Registry.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close frame registry")
		}
	}
}
