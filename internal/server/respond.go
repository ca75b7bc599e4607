package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/booth"
	"github.com/moonback/photoboot/internal/capture"
	"github.com/moonback/photoboot/internal/email"
	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/imaging"
	"github.com/moonback/photoboot/internal/layout"
	"github.com/moonback/photoboot/internal/printing"
	"github.com/moonback/photoboot/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. internalDetails are logged but
// never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("client_msg", clientMsg).
			Strs("internal_details", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]any{"success": false, "error": clientMsg})
}

// respondErr maps domain errors to status codes. Unknown errors are logged
// and reported as a generic 500.
func respondErr(w http.ResponseWriter, err error) {
	var ite *layout.InvalidTemplateError
	var enc *imaging.EncodingError
	switch {
	case errors.Is(err, layout.ErrTemplateNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, frames.ErrNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ite):
		httpError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, layout.ErrNoPhotos), errors.Is(err, capture.ErrInvalidMode),
		errors.Is(err, imaging.ErrTooLarge), frames.IsAssetLoadError(err):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booth.ErrBusy),
		errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrNotRunning):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, printing.ErrDisabled), errors.Is(err, email.ErrDisabled):
		httpError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &enc):
		httpError(w, http.StatusInternalServerError, "failed to encode image", err.Error())
	default:
		httpError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
