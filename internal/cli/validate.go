package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fpang/ai-image-editor/internal/auth"
	"github.com/rs/zerolog/log"
)

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", path).Msg("File not found")
		}
		log.Fatal().Err(err).Str("path", path).Msg("Failed to access file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", path).Msg("Path is a directory")
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// HandleValidationError reports an API key problem with a hint matching
// its classification and exits.
func HandleValidationError(err error) {
	var ce *auth.ClassifiedError
	if errors.As(err, &ce) {
		switch ce.Type {
		case auth.ErrTypeNoKey:
			log.Fatal().Msg("No API key configured. Set IMAGE_EDIT_API_KEY or store one in ~/.ai-image-editor/credentials.gpg")
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case auth.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	} else {
		log.Fatal().Err(err).Msg("unexpected error during API key setup")
	}
	os.Exit(1)
}
