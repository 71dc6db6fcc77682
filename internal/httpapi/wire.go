package httpapi

import (
	"time"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/session"
)

// Build wires a server and its session manager from configuration. The
// caller owns the manager and must Shutdown it.
func Build(editor chat.Editor, cfg *config.Config, version string) (*Server, *session.Manager) {
	sessions := session.NewManager(editor, session.ManagerOptions{
		Session: session.Options{
			HistoryLimit:   cfg.HistoryLimit,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Fetcher:        chat.NewHTTPFetcher(nil, chat.DefaultMaxFetchBytes),
			Now:            time.Now,
		},
		IdleTimeout: cfg.SessionIdle,
		MaxSessions: cfg.MaxSessions,
	})

	return New(editor, sessions, serverOptions(cfg, version)), sessions
}

// BuildStateless wires a server without a session manager, for hosts that
// cannot keep state between requests. Only the health check and /image-edit
// are mounted.
func BuildStateless(editor chat.Editor, cfg *config.Config, version string) *Server {
	return New(editor, nil, serverOptions(cfg, version))
}

func serverOptions(cfg *config.Config, version string) Options {
	return Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		Display: filehandler.DisplayOptions{
			MaxWidth:  cfg.DisplayMaxWidth,
			MaxHeight: cfg.DisplayMaxHeight,
		},
		OriginVerifySecret: cfg.OriginVerifySecret,
		Version:            version,
	}
}
