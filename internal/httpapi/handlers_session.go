package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/ai-image-editor/internal/export"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/history"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/fpang/ai-image-editor/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// multipartOverhead allows for form boundaries and headers on top of the file.
const multipartOverhead = 1 << 20

type operationRequest struct {
	Operation  string           `json:"operation"`
	Parameters operation.Params `json:"parameters"`
}

type outcomeView struct {
	Success        bool   `json:"success"`
	Operation      string `json:"operation"`
	Error          string `json:"error,omitempty"`
	Source         string `json:"source,omitempty"`
	ProcessingTime int64  `json:"processingTime"`
}

type operationResponse struct {
	Outcome  outcomeView      `json:"outcome"`
	Snapshot session.Snapshot `json:"snapshot"`
}

type navigationResponse struct {
	Changed  bool             `json:"changed"`
	Snapshot session.Snapshot `json:"snapshot"`
}

type estimateResponse struct {
	Format         export.Format   `json:"format"`
	Quality        int             `json:"quality"`
	SourceBytes    int             `json:"sourceBytes"`
	EstimatedBytes int64           `json:"estimatedBytes"`
	Formats        []export.Format `json:"formats"`
}

// session resolves the {id} URL parameter, writing 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return c, true
}

// readUpload reads the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (filehandler.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return filehandler.Upload{}, tooLargeError(s.opts.MaxUploadBytes)
		}
		return filehandler.Upload{}, &filehandler.ValidationError{Message: "Expected a multipart form with a file field"}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return filehandler.Upload{}, &filehandler.ValidationError{Message: "Expected a multipart form with a file field"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return filehandler.Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}
	return filehandler.Upload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func tooLargeError(maxBytes int64) error {
	return &filehandler.ValidationError{Message: fmt.Sprintf("File size must be less than %dMB", maxBytes>>20)}
}

// respondUploadError maps an upload failure to a status code.
func respondUploadError(w http.ResponseWriter, err error) {
	var verr *filehandler.ValidationError
	switch {
	case errors.As(err, &verr):
		httpError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, session.ErrBusy):
		httpError(w, http.StatusConflict, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, "Failed to read upload", err.Error())
	}
}

// handleCreateSession starts a session. A multipart body with a file also
// uploads it; any other body creates an empty session. The upload is
// validated before the session is registered so a rejected file never
// evicts a live session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var upload *filehandler.Upload
	if isMultipart(r) {
		u, err := s.readUpload(w, r)
		if err == nil {
			u, err = filehandler.ValidateUpload(u, s.opts.MaxUploadBytes)
		}
		if err != nil {
			respondUploadError(w, err)
			return
		}
		upload = &u
	}

	c := s.sessions.Create()
	if upload != nil {
		if err := c.Upload(*upload); err != nil {
			s.sessions.Delete(c.ID())
			respondUploadError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusCreated, c.Snapshot())
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		httpError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	upload, err := s.readUpload(w, r)
	if err == nil {
		err = c.Upload(upload)
	}
	if err != nil {
		respondUploadError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleApplyOperation(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}

	var req operationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	op, err := operation.Parse(req.Operation, req.Parameters)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := c.ApplyOperation(r.Context(), op)
	switch {
	case errors.Is(out.Err, session.ErrBusy):
		httpError(w, http.StatusConflict, out.Error)
		return
	case errors.Is(out.Err, session.ErrNoImage):
		httpError(w, http.StatusBadRequest, "Please upload an image first")
		return
	}

	resp := operationResponse{
		Outcome: outcomeView{
			Success:        out.Success,
			Operation:      string(out.Operation),
			Error:          out.Error,
			Source:         string(out.Source),
			ProcessingTime: out.Elapsed.Milliseconds(),
		},
		Snapshot: c.Snapshot(),
	}
	if !out.Success {
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":    out.Error,
			"outcome":  resp.Outcome,
			"snapshot": resp.Snapshot,
		})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*session.Controller).Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, (*session.Controller).Redo)
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, step func(*session.Controller) (bool, error)) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	changed, err := step(c)
	if err != nil {
		httpError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, navigationResponse{Changed: changed, Snapshot: c.Snapshot()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := c.Reset(); err != nil {
		httpError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "History index must be an integer")
		return
	}
	if err := c.JumpTo(index); err != nil {
		switch {
		case errors.Is(err, history.ErrIndexOutOfRange):
			httpError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrBusy):
			httpError(w, http.StatusConflict, err.Error())
		default:
			httpError(w, http.StatusInternalServerError, "Failed to change history position", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// imageFor picks the current or original image per the version parameter.
func imageFor(c *session.Controller, version string) (imageref.Ref, bool, error) {
	switch version {
	case "", "current":
		ref, ok := c.Current()
		return ref, ok, nil
	case "original":
		ref, ok := c.Original()
		return ref, ok, nil
	default:
		return imageref.Ref{}, false, fmt.Errorf("version must be current or original")
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	ref, ok, err := imageFor(c, r.URL.Query().Get("version"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		httpError(w, http.StatusNotFound, "No image uploaded")
		return
	}

	if r.URL.Query().Get("display") == "" || r.URL.Query().Get("display") == "0" {
		sendFile(w, ref.Data, ref.MIMEType, "")
		return
	}

	opts := s.opts.Display
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"zoom", &opts.Zoom},
		{"maxWidth", &opts.MaxWidth},
		{"maxHeight", &opts.MaxHeight},
	} {
		v, err := queryInt(r, p.key, *p.dst)
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		*p.dst = v
	}
	opts = opts.Within(s.opts.Display)

	img, _, err := filehandler.Decode(ref.Data)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Failed to decode image", err.Error())
		return
	}
	data, err := filehandler.RenderDisplay(img, opts)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Failed to render image", err.Error())
		return
	}
	sendFile(w, data, "image/png", "")
}

// exportOptions reads format, quality and name from the query string.
func exportOptions(r *http.Request, c *session.Controller) (export.Options, error) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return export.Options{}, err
	}
	quality, err := queryInt(r, "quality", export.DefaultQuality)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Format:       format,
		Quality:      quality,
		Name:         r.URL.Query().Get("name"),
		OriginalName: c.FileName(),
		Now:          time.Now(),
	}, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	opts, err := exportOptions(r, c)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, ok := c.Current()
	if !ok {
		httpError(w, http.StatusNotFound, "No image uploaded")
		return
	}

	blob, err := export.Encode(ref, opts)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Export failed", err.Error())
		return
	}
	log.Info().
		Str("session", c.ID()).
		Str("format", string(opts.Format)).
		Str("file", blob.FileName).
		Int("size", len(blob.Data)).
		Msg("Image exported")
	sendFile(w, blob.Data, blob.MIMEType, blob.FileName)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	opts, err := exportOptions(r, c)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, ok := c.Current()
	if !ok {
		httpError(w, http.StatusNotFound, "No image uploaded")
		return
	}
	quality := export.ClampQuality(opts.Quality)
	respondJSON(w, http.StatusOK, estimateResponse{
		Format:         opts.Format,
		Quality:        quality,
		SourceBytes:    len(ref.Data),
		EstimatedBytes: export.EstimateSize(len(ref.Data), opts.Format, quality),
		Formats:        export.Formats(),
	})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	opts, err := exportOptions(r, c)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	original, ok := c.Original()
	if !ok {
		httpError(w, http.StatusNotFound, "No image uploaded")
		return
	}

	blob, err := export.Bundle(original, c.Entries(), opts)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Export failed", err.Error())
		return
	}
	sendFile(w, blob.Data, blob.MIMEType, blob.FileName)
}
