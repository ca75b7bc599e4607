// Package server exposes the booth over HTTP for the kiosk front end and the
// admin dashboard.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/booth"
	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/layout"
	"github.com/moonback/photoboot/internal/storage"
)

// Options configure a Server. FrameLibrary may be nil when frames come from
// another booth.
type Options struct {
	Controller     *booth.Controller
	Templates      *layout.Library
	Store          storage.Store
	FrameSource    booth.FrameSource
	FrameLibrary   *frames.Library
	AdminToken     string
	MaxUploadBytes int64
	CORSOrigin     string
	Version        string
	// PresignExpiry, when the store can presign, makes downloads redirect to
	// a signed URL valid for this long.
	PresignExpiry time.Duration
}

// Presigner is implemented by stores that can hand out direct download URLs.
type Presigner interface {
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Server holds the HTTP handlers.
type Server struct {
	ctl           *booth.Controller
	templates     *layout.Library
	store         storage.Store
	frameSource   booth.FrameSource
	frameLib      *frames.Library
	adminToken    string
	maxUpload     int64
	corsOrigin    string
	version       string
	presignExpiry time.Duration
	started       time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 16 << 20
	}
	return &Server{
		ctl:           opts.Controller,
		templates:     opts.Templates,
		store:         opts.Store,
		frameSource:   opts.FrameSource,
		frameLib:      opts.FrameLibrary,
		adminToken:    opts.AdminToken,
		maxUpload:     maxUpload,
		corsOrigin:    opts.CORSOrigin,
		version:       opts.Version,
		presignExpiry: opts.PresignExpiry,
		started:       time.Now(),
	}
}

// Handler returns the routed handler with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /upload/photo", s.handleUploadPhoto)
	mux.HandleFunc("POST /api/compose", s.handleCompose)

	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /api/templates/{name}", s.handleTemplate)

	mux.HandleFunc("GET "+frames.ActiveFramePath, s.handleActiveFrame)
	mux.HandleFunc("GET "+frames.FrameFilePath+"{filename}", s.handleFrameFile)

	mux.HandleFunc("GET /api/download/{filename}", s.handleDownload)
	mux.HandleFunc("POST /api/archive", s.handleArchive)

	mux.HandleFunc("POST /api/capture/start", s.handleCaptureStart)
	mux.HandleFunc("POST /api/capture/cancel", s.handleCaptureCancel)
	mux.HandleFunc("POST /api/capture/pause", s.handleCapturePause)
	mux.HandleFunc("POST /api/capture/resume", s.handleCaptureResume)
	mux.HandleFunc("GET /api/capture/status", s.handleCaptureStatus)

	mux.HandleFunc("POST /api/print", s.handlePrint)
	mux.HandleFunc("POST /api/email", s.handleEmail)

	mux.HandleFunc("GET /admin/frames", s.requireAdmin(s.handleAdminListFrames))
	mux.HandleFunc("POST /admin/frames", s.requireAdmin(s.handleAdminCreateFrame))
	mux.HandleFunc("PATCH /admin/frames/{id}", s.requireAdmin(s.handleAdminUpdateFrame))
	mux.HandleFunc("POST /admin/frames/{id}/activate", s.requireAdmin(s.handleAdminActivateFrame))
	mux.HandleFunc("POST /admin/frames/{id}/deactivate", s.requireAdmin(s.handleAdminDeactivateFrame))
	mux.HandleFunc("DELETE /admin/frames/{id}", s.requireAdmin(s.handleAdminDeleteFrame))
	mux.HandleFunc("GET /admin/prints", s.requireAdmin(s.handleAdminListPrints))
	mux.HandleFunc("DELETE /admin/prints/{filename}", s.requireAdmin(s.handleAdminDeletePrint))

	return withLogging(withCORS(s.corsOrigin, mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Starting web server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}
