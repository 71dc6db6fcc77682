// Package cli holds helpers shared by the command-line binaries.
package cli

import (
	"context"

	"github.com/fpang/ai-image-editor/internal/auth"
	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/rs/zerolog/log"
)

// InitEditor resolves the API key (environment, then GPG credentials),
// creates the remote editor for the configured provider and, for Gemini,
// validates the key. It exits fatally on failure and returns the key source.
func InitEditor(ctx context.Context, cfg *config.Config, validate bool) (chat.Editor, string) {
	source := "env"
	if cfg.APIKey == "" {
		key, err := auth.GetAPIKey(config.APIKeyEnvVars(cfg.Provider)...)
		if err != nil {
			HandleValidationError(err)
		}
		cfg.APIKey = key
		source = "gpg"
	}

	editor, err := chat.NewEditor(ctx, *cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create remote editor")
	}

	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("remote editor initialized")

	// Only the Gemini SDK exposes a cheap validation call.
	if g, ok := editor.(*chat.GeminiEditor); ok && validate {
		if err := auth.ValidateAPIKey(ctx, g.Client(), cfg.Model); err != nil {
			HandleValidationError(err)
		}
		log.Info().Msg("API key validation complete - ready for operations")
	}

	return editor, source
}
