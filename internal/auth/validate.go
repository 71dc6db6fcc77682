package auth

import (
	"context"
	"time"

	"github.com/fpang/ai-image-editor/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidateAPIKey verifies a Gemini key with a minimal text request. It
// returns nil if the key is valid, or a ClassifiedError describing the
// failure.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	if err != nil {
		ce := Classify(err)
		recordValidation(ce.Type.String(), elapsed)
		log.Error().Err(err).Str("type", ce.Type.String()).Msg("API key validation failed")
		return ce
	}

	if resp == nil || len(resp.Candidates) == 0 {
		log.Warn().Msg("API key validation returned empty response")
		recordValidation("empty_response", elapsed)
		return &ClassifiedError{Type: ErrTypeUnknown, Message: "API returned empty response"}
	}

	recordValidation("success", elapsed)
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

func recordValidation(result string, elapsed time.Duration) {
	metrics.New().
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()
}
