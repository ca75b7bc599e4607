package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/moonback/photoboot/internal/logging"
	"github.com/moonback/photoboot/internal/server"
)

var servePortFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the booth HTTP API for the kiosk front end",
	Long: `Serve starts the HTTP API: uploads, composition, capture sessions,
downloads, printing, email and the admin frame registry.

Only one serve process may own a booth's camera and printer; a second one
exits when it cannot take the lock file.

Examples:
  photobooth serve
  photobooth serve --port 9090
  PHOTOBOOTH_ADMIN_TOKEN=secret photobooth serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	start := time.Now()
	if servePortFlag > 0 {
		cfg.Server.Port = servePortFlag
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LockFile), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(cfg.LockFile)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another photobooth server is already running (" + cfg.LockFile + ")")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("Failed to release lock")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Controller:     a.controller,
		Templates:      a.templates,
		Store:          a.store,
		FrameSource:    a.frames,
		FrameLibrary:   a.library,
		AdminToken:     cfg.Server.AdminToken,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CORSOrigin:     cfg.Server.CORSOrigin,
		Version:        version,
		PresignExpiry:  cfg.Storage.PresignExpiry,
	}
	srv := server.New(opts)

	startup := logging.NewStartupLogger("photobooth").
		Version(version).
		Storage(cfg.Storage.Backend, a.storeDesc).
		Device("camera", a.camera.Describe()).
		Device("printer", cfg.Printer.Queue).
		Feature("print", a.printer.Enabled()).
		Feature("email", a.mailer.Enabled()).
		Feature("admin", cfg.Server.AdminToken != "").
		Feature("remote_frames", a.library == nil).
		Config("addr", cfg.Server.Addr()).
		Config("template", cfg.Templates.Default).
		Config("countdown", strconv.Itoa(cfg.Capture.Countdown)).
		Config("booth_id", cfg.BoothID)
	if a.library != nil {
		startup.Database("frames", a.library.Registry.Path())
	} else {
		startup.Config("frames_remote_url", cfg.Frames.RemoteURL)
	}
	startup.InitDuration(time.Since(start)).Log()

	fmt.Printf("\n  Photobooth: http://localhost:%d\n\n", cfg.Server.Port)
	return srv.ListenAndServe(ctx, cfg.Server.Addr())
}
