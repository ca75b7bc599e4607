package server

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/archive"
	"github.com/moonback/photoboot/internal/booth"
	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/imaging"
	"github.com/moonback/photoboot/internal/layout"
	"github.com/moonback/photoboot/internal/naming"
	"github.com/moonback/photoboot/internal/storage"
)

// maxComposePhotos bounds the number of parts accepted by /api/compose.
const maxComposePhotos = 10

var formatExtensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// readPart reads a multipart file, rejecting anything over limit.
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, fmt.Errorf("%s is larger than %d bytes", fh.Filename, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

// POST /upload/photo (multipart "photo")
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	_, fh, err := r.FormFile("photo")
	if err != nil {
		httpError(w, http.StatusBadRequest, "photo is required")
		return
	}
	data, err := readPart(fh, s.maxUpload)
	if err != nil {
		httpError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	img, format, err := imaging.DecodeBytes(data)
	if errors.Is(err, imaging.ErrTooLarge) {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		httpError(w, http.StatusBadRequest, "not a supported image")
		return
	}
	ext, ok := formatExtensions[format]
	if !ok {
		httpError(w, http.StatusBadRequest, "unsupported image format "+format)
		return
	}

	camera := ""
	if meta, err := imaging.ReadMetadata(bytes.NewReader(data)); err == nil {
		camera = meta.Camera()
	}

	name := naming.Upload(ext)
	key, _ := storage.Key(storage.UploadsPrefix, name)
	if err := s.store.Put(r.Context(), key, bytes.NewReader(data), fh.Header.Get("Content-Type")); err != nil {
		respondErr(w, err)
		return
	}

	log.Info().
		Str("filename", name).
		Int("size", len(data)).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Str("camera", camera).
		Msg("Photo uploaded")

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"filename":  name,
		"size":      len(data),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"camera":    camera,
	})
}

// POST /api/compose (multipart "photos" + template, text_overlay, filter, use_active_frame)
func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload*maxComposePhotos)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		httpError(w, http.StatusBadRequest, "at least one photo is required")
		return
	}
	if len(files) > maxComposePhotos {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("at most %d photos are accepted", maxComposePhotos))
		return
	}

	uploads := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh, s.maxUpload)
		if err != nil {
			httpError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		uploads = append(uploads, data)
	}

	useFrame, _ := strconv.ParseBool(r.FormValue("use_active_frame"))
	res, err := s.ctl.ComposeUploaded(r.Context(), uploads, booth.ComposeRequest{
		Template:       r.FormValue("template"),
		TextOverlay:    r.FormValue("text_overlay"),
		Filter:         r.FormValue("filter"),
		UseActiveFrame: useFrame,
	})
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"template":       res.Template,
		"filename":       res.Filename,
		"canvas_path":    res.PrintKey,
		"thumbnail_path": res.ThumbnailKey,
		"photos_count":   res.PhotosUsed,
		"framed":         res.Framed,
	})
}

type templateSummary struct {
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Kind        layout.Kind `json:"kind"`
	Slots       int         `json:"slots"`
	WidthPx     int         `json:"width_px"`
	HeightPx    int         `json:"height_px"`
	DPI         int         `json:"dpi"`
}

// GET /api/templates
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	list := s.templates.List()
	out := make([]templateSummary, 0, len(list))
	for _, t := range list {
		wpx, hpx := t.PixelSize()
		out = append(out, templateSummary{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			Kind:        t.Kind,
			Slots:       t.Slots(),
			WidthPx:     wpx,
			HeightPx:    hpx,
			DPI:         t.Dimensions.DPI,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"templates": out})
}

// GET /api/templates/{name}
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.Get(r.PathValue("name"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// GET /api/frames/active
func (s *Server) handleActiveFrame(w http.ResponseWriter, r *http.Request) {
	var frame *frames.Descriptor
	if s.frameSource != nil {
		f, err := s.frameSource.Active(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		frame = f
	}
	respondJSON(w, http.StatusOK, map[string]any{"frame": frame})
}

// GET /api/frames/file/{filename}
func (s *Server) handleFrameFile(w http.ResponseWriter, r *http.Request) {
	if s.frameLib == nil {
		httpError(w, http.StatusNotFound, "frames are not served by this booth")
		return
	}
	filename := r.PathValue("filename")
	if !frames.SafeFilename(filename) {
		httpError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	data, err := s.frameLib.Loader().LoadAsset(r.Context(), filename)
	if err != nil {
		httpError(w, http.StatusNotFound, "frame not found")
		return
	}
	w.Header().Set("Content-Type", imaging.MIMEPNG)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// findKey resolves a bare filename to a stored key, prints first.
func (s *Server) findKey(r *http.Request, filename string) (string, error) {
	for _, prefix := range []string{storage.PrintsPrefix, storage.UploadsPrefix} {
		key, err := storage.Key(prefix, filename)
		if err != nil {
			return "", err
		}
		rc, err := s.store.Open(r.Context(), key)
		if err == nil {
			rc.Close()
			return key, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", storage.ErrNotFound, filename)
}

// GET /api/download/{filename}
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if _, err := storage.Key(storage.PrintsPrefix, filename); err != nil {
		httpError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	key, err := s.findKey(r, filename)
	if err != nil {
		respondErr(w, err)
		return
	}

	if p, ok := s.store.(Presigner); ok && s.presignExpiry > 0 {
		url, err := p.PresignURL(r.Context(), key, s.presignExpiry)
		if err != nil {
			respondErr(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := s.store.Open(r.Context(), key)
	if err != nil {
		respondErr(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Download interrupted")
	}
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".png"):
		return imaging.MIMEPNG
	case strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".jpeg"):
		return imaging.MIMEJPEG
	}
	return "application/octet-stream"
}

type archiveRequest struct {
	Filenames []string `json:"filenames"`
	// Compression is "zstd" (default) or "deflate".
	Compression string `json:"compression"`
}

// POST /api/archive
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Filenames) == 0 {
		httpError(w, http.StatusBadRequest, "filenames is required")
		return
	}
	if len(req.Filenames) > archive.MaxEntries {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per archive", archive.MaxEntries))
		return
	}

	var opts archive.Options
	switch req.Compression {
	case "", "zstd":
	case "deflate":
		opts.Method = zip.Deflate
	default:
		httpError(w, http.StatusBadRequest, "compression must be zstd or deflate")
		return
	}

	keys := make([]string, 0, len(req.Filenames))
	for _, name := range req.Filenames {
		key, err := storage.Key(storage.PrintsPrefix, name)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid filename")
			return
		}
		keys = append(keys, key)
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		"photobooth_"+time.Now().Format("20060102_150405")+".zip"))

	// Nothing is written before the first entry, so ErrEmpty can still
	// become a 404.
	n, err := archive.Write(r.Context(), w, s.store, keys, opts)
	switch {
	case errors.Is(err, archive.ErrEmpty):
		w.Header().Del("Content-Disposition")
		httpError(w, http.StatusNotFound, "none of the requested files exist")
	case err != nil:
		log.Error().Err(err).Int("entries", n).Msg("Archive stream failed")
	}
}
