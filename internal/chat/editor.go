package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/ai-image-editor/internal/auth"
	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/metrics"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/rs/zerolog/log"
)

// NewEditor builds the editor for the configured provider.
func NewEditor(ctx context.Context, cfg config.Config) (Editor, error) {
	opts := Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.RemoteTimeout,
		Strict:  cfg.StrictParsing,
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiEditor(ctx, opts)
	case config.ProviderOpenAI, "":
		return NewOpenAIEditor(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// withTimeout applies the optional per-call timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// remoteFailure classifies err into a failure Result.
func remoteFailure(start time.Time, err error) Result {
	ce := auth.Classify(err)
	return failure(start, ce.Message)
}

// record logs and emits metrics for a finished call.
func record(provider, model string, op operation.Operation, res Result) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}

	metrics.New().
		Dimension("Operation", string(op.Name())).
		Dimension("Result", outcome).
		Duration("RemoteEditMs", res.Elapsed).
		Count("RemoteEditResult").
		Property("provider", provider).
		Flush()

	if !res.Success {
		log.Error().
			Str("provider", provider).
			Str("model", model).
			Str("operation", string(op.Name())).
			Str("error", res.Error).
			Dur("duration", res.Elapsed).
			Msg("Remote image edit failed")
		return
	}
	log.Info().
		Str("provider", provider).
		Str("model", model).
		Str("operation", string(op.Name())).
		Str("source", string(res.Source)).
		Int("output_bytes", len(res.Payload.Data)).
		Bool("remote_url", res.Payload.URL != "").
		Dur("duration", res.Elapsed).
		Msg("Remote image edit complete")
}
