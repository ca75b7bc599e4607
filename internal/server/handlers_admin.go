package server

import (
	"net/http"
	"strconv"

	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/geometry"
	"github.com/moonback/photoboot/internal/storage"
)

// maxFrameBytes bounds an uploaded frame asset.
const maxFrameBytes = 32 << 20

func (s *Server) requireFrameLibrary(w http.ResponseWriter) bool {
	if s.frameLib == nil {
		httpError(w, http.StatusNotFound, "frame registry not available on this booth")
		return false
	}
	return true
}

// GET /admin/frames
func (s *Server) handleAdminListFrames(w http.ResponseWriter, r *http.Request) {
	if !s.requireFrameLibrary(w) {
		return
	}
	list, err := s.frameLib.Registry.List(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	if list == nil {
		list = []*frames.Descriptor{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"frames": list})
}

// placementFromForm reads the placement fields shared by create and update.
func placementFromForm(r *http.Request, d *frames.Descriptor) error {
	if v := r.FormValue("position"); v != "" {
		d.Position = geometry.Position(v)
	}
	for field, dst := range map[string]*float64{"x": &d.X, "y": &d.Y} {
		if v := r.FormValue(field); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*dst = f
		}
	}
	if v := r.FormValue("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		d.Size = n
	}
	return nil
}

// POST /admin/frames (multipart "frame" + name, description, position, x, y, size, active)
func (s *Server) handleAdminCreateFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireFrameLibrary(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBytes+1<<20)
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	_, fh, err := r.FormFile("frame")
	if err != nil {
		httpError(w, http.StatusBadRequest, "frame file is required")
		return
	}
	data, err := readPart(fh, maxFrameBytes)
	if err != nil {
		httpError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	d := frames.Descriptor{Position: geometry.Center, Size: 100}
	if err := placementFromForm(r, &d); err != nil {
		httpError(w, http.StatusBadRequest, "invalid placement: "+err.Error())
		return
	}
	d.Active, _ = strconv.ParseBool(r.FormValue("active"))
	nf := frames.NewFrame{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Descriptor:  d,
		CreatedBy:   "admin",
	}

	// Validate before touching the disk; Add fills in the filename.
	check := d
	check.Name, check.Filename = nf.Name, "pending.png"
	if err := check.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.frameLib.Add(r.Context(), nf, data)
	if err != nil {
		httpError(w, http.StatusBadRequest, "could not add frame", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "frame": created})
}

// PATCH /admin/frames/{id} (form fields name, description, position, x, y, size)
func (s *Server) handleAdminUpdateFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireFrameLibrary(w) {
		return
	}
	d, err := s.frameLib.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if v := r.FormValue("name"); v != "" {
		d.Name = v
	}
	if v, ok := r.Form["description"]; ok {
		d.Description = v[0]
	}
	if err := placementFromForm(r, d); err != nil {
		httpError(w, http.StatusBadRequest, "invalid placement: "+err.Error())
		return
	}
	if err := d.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.frameLib.Registry.Update(r.Context(), d); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "frame": d})
}

// POST /admin/frames/{id}/activate
func (s *Server) handleAdminActivateFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireFrameLibrary(w) {
		return
	}
	if err := s.frameLib.Registry.Activate(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /admin/frames/{id}/deactivate
func (s *Server) handleAdminDeactivateFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireFrameLibrary(w) {
		return
	}
	if err := s.frameLib.Registry.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DELETE /admin/frames/{id}
func (s *Server) handleAdminDeleteFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireFrameLibrary(w) {
		return
	}
	if err := s.frameLib.Remove(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	s.ctl.ClearFrameCache()
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /admin/prints
func (s *Server) handleAdminListPrints(w http.ResponseWriter, r *http.Request) {
	objs, err := s.store.List(r.Context(), storage.PrintsPrefix)
	if err != nil {
		respondErr(w, err)
		return
	}
	type printEntry struct {
		storage.Object
		Filename string `json:"filename"`
	}
	out := make([]printEntry, 0, len(objs))
	for _, o := range objs {
		out = append(out, printEntry{Object: o, Filename: o.Name()})
	}
	respondJSON(w, http.StatusOK, map[string]any{"prints": out})
}

// DELETE /admin/prints/{filename}
func (s *Server) handleAdminDeletePrint(w http.ResponseWriter, r *http.Request) {
	key, err := storage.Key(storage.PrintsPrefix, r.PathValue("filename"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if err := s.store.Delete(r.Context(), key); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
