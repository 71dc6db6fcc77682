package chat

import (
	"context"
	"time"

	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
)

// PayloadSource records where in the remote reply the image was found.
type PayloadSource string

const (
	// SourceInline is structured image output (inline bytes or b64_json).
	SourceInline PayloadSource = "inline"
	// SourceURL is a remote http(s) URL found in the reply.
	SourceURL PayloadSource = "url"
	// SourceDataURI is a data URI found in the reply.
	SourceDataURI PayloadSource = "data-uri"
	// SourceRawFallback means the whole reply text was decoded as base64.
	// This is best-effort and may be disabled with strict parsing.
	SourceRawFallback PayloadSource = "raw-fallback"
)

// Result is the normalized outcome of one remote edit. Failures are values:
// Success is false and Error carries a user-facing message.
type Result struct {
	Success bool
	Payload imageref.Ref
	Source  PayloadSource
	Error   string
	Elapsed time.Duration
	// Text is any prose the model returned alongside the image.
	Text string
}

// Editor performs exactly one outbound call per Edit.
type Editor interface {
	Edit(ctx context.Context, image imageref.Ref, op operation.Operation) Result
}

// Options configure a remote editor.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds a single call. Zero means no client-side timeout.
	Timeout time.Duration
	// Strict disables the raw base64 fallback when extracting images from text.
	Strict bool
}

func failure(start time.Time, msg string) Result {
	return Result{Success: false, Error: msg, Elapsed: time.Since(start)}
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
