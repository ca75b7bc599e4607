package server

import (
	"net/http"

	"github.com/moonback/photoboot/internal/booth"
	"github.com/moonback/photoboot/internal/printing"
)

// POST /api/capture/start
func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	var req booth.SessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.ctl.StartSession(req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"success": true, "session": sess})
}

// POST /api/capture/cancel. Cancelling when idle is a no-op.
func (s *Server) handleCaptureCancel(w http.ResponseWriter, r *http.Request) {
	s.ctl.Cancel()
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "status": s.ctl.Status()})
}

// POST /api/capture/pause
func (s *Server) handleCapturePause(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Pause(); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "status": s.ctl.Status()})
}

// POST /api/capture/resume
func (s *Server) handleCaptureResume(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Resume(); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "status": s.ctl.Status()})
}

// GET /api/capture/status
func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.ctl.Status())
}

type printRequest struct {
	Filename string `json:"filename"`
	Copies   int    `json:"copies"`
}

// POST /api/print
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Filename == "" {
		httpError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.Copies == 0 {
		req.Copies = 1
	}
	if req.Copies < 1 || req.Copies > printing.MaxCopies {
		httpError(w, http.StatusBadRequest, "copies out of range")
		return
	}
	jobID, err := s.ctl.Print(r.Context(), req.Filename, req.Copies)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": jobID, "copies": req.Copies})
}

type emailRequest struct {
	To       string `json:"to"`
	Filename string `json:"filename"`
}

// POST /api/email
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.To == "" || req.Filename == "" {
		httpError(w, http.StatusBadRequest, "to and filename are required")
		return
	}
	if err := s.ctl.Email(r.Context(), req.To, req.Filename); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
