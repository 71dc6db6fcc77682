// Package httpapi exposes the processing endpoint and the session API used
// by the browser editor. The local web server mounts both; the Lambda
// function mounts only the stateless processing endpoint.
package httpapi

import (
	"net/http"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
)

// Options configure the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	// AllowedOrigins extends the localhost CORS allowance.
	AllowedOrigins []string
	Display        filehandler.DisplayOptions
	// OriginVerifySecret, when set, must match the x-origin-verify header.
	OriginVerifySecret string
	Version            string
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	editor   chat.Editor
	sessions *session.Manager
	opts     Options
}

// New creates a server. The editor serves the stateless processing API;
// sessions own their own reference to it. A nil sessions manager leaves the
// session API unmounted.
func New(editor chat.Editor, sessions *session.Manager, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = filehandler.DefaultMaxUploadBytes
	}
	return &Server{editor: editor, sessions: sessions, opts: opts}
}

// Handler builds the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		withRecover,
		withLogging,
		withMetrics,
		withCORS(s.opts.AllowedOrigins),
		withOriginVerify(s.opts.OriginVerifySecret),
		func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) },
	)

	r.Get("/api/health", s.handleHealth)

	r.Route("/image-edit", func(r chi.Router) {
		r.Get("/", s.handleDescribe)
		r.Post("/", s.handleProcess)
	})

	if s.sessions != nil {
		s.mountSessions(r)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (s *Server) mountSessions(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/upload", s.handleUpload)
			r.Post("/operations", s.handleApplyOperation)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
			r.Post("/reset", s.handleReset)
			r.Post("/history/{index}", s.handleJump)
			r.Get("/image", s.handleImage)
			r.Get("/export", s.handleExport)
			r.Get("/export/estimate", s.handleEstimate)
			r.Get("/export/bundle", s.handleBundle)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"version": s.opts.Version,
	}
	if s.sessions != nil {
		body["sessions"] = s.sessions.Count()
	}
	respondJSON(w, http.StatusOK, body)
}
