package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/rs/zerolog/log"
)

type processRequest struct {
	Image      string           `json:"image"`
	Operation  string           `json:"operation"`
	Parameters operation.Params `json:"parameters"`
}

type processResponse struct {
	Success        bool   `json:"success"`
	ImageURL       string `json:"imageUrl,omitempty"`
	ProcessingTime int64  `json:"processingTime,omitempty"`
	Error          string `json:"error,omitempty"`
	Details        string `json:"details,omitempty"`
	Operation      string `json:"operation"`
}

// handleProcess applies one operation to an image without any session state.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Image) == "" || strings.TrimSpace(req.Operation) == "" {
		httpError(w, http.StatusBadRequest, "Image and operation are required")
		return
	}

	ref, err := imageref.Parse(req.Image)
	if err != nil {
		httpError(w, http.StatusBadRequest, "Image must be base64 data or a data URI", err.Error())
		return
	}

	op, err := operation.Parse(req.Operation, req.Parameters)
	if err != nil {
		if errors.Is(err, operation.ErrInvalidIntensity) || errors.Is(err, operation.ErrInvalidMask) {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		httpError(w, http.StatusBadRequest, "Invalid operation", err.Error())
		return
	}

	log.Info().
		Str("operation", string(op.Name())).
		Str("mime_type", ref.MIMEType).
		Int("size", len(ref.Data)).
		Msg("Processing image edit")

	res := s.editor.Edit(r.Context(), ref, op)
	if !res.Success {
		respondJSON(w, http.StatusInternalServerError, processResponse{
			Success:   false,
			Error:     "Image processing failed",
			Details:   res.Error,
			Operation: req.Operation,
		})
		return
	}

	respondJSON(w, http.StatusOK, processResponse{
		Success:        true,
		ImageURL:       res.Payload.String(),
		ProcessingTime: res.Elapsed.Milliseconds(),
		Operation:      req.Operation,
	})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, operation.Describe())
}
