// Package config loads runtime configuration from environment variables.
//
// An optional .env file in the working directory is read first; values
// already present in the environment win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported remote providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Defaults for the OpenAI-compatible provider. The base URL points at an
// OpenRouter-style gateway that accepts image input on chat completions.
const (
	DefaultOpenAIBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIModel   = "google/gemini-2.5-flash-image-preview"
	DefaultGeminiModel   = "gemini-2.5-flash-image"
)

// Config holds all settings shared by the web server, the Lambda and the CLI.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Port      int
	SSMParam  string
	LogFormat string

	MaxUploadBytes int64
	HistoryLimit   int
	RemoteTimeout  time.Duration
	StrictParsing  bool
	AllowedOrigins []string
	SessionIdle    time.Duration
	MaxSessions    int
	MetricsEnabled bool

	// OriginVerifySecret guards the Lambda behind CloudFront.
	OriginVerifySecret string

	DisplayMaxWidth  int
	DisplayMaxHeight int
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:           strings.ToLower(getEnv("IMAGE_EDIT_PROVIDER", ProviderOpenAI)),
		BaseURL:            os.Getenv("IMAGE_EDIT_BASE_URL"),
		Model:              os.Getenv("IMAGE_EDIT_MODEL"),
		Port:               getEnvInt("PORT", 8080),
		SSMParam:           os.Getenv("SSM_API_KEY_PARAM"),
		LogFormat:          getEnv("IMAGE_EDIT_LOG_FORMAT", "console"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) * 1024 * 1024,
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 0),
		RemoteTimeout:      time.Duration(getEnvInt("REMOTE_TIMEOUT_SECONDS", 0)) * time.Second,
		StrictParsing:      getEnvBool("STRICT_RESPONSE_PARSING", false),
		AllowedOrigins:     splitList(os.Getenv("ALLOWED_ORIGINS")),
		SessionIdle:        time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 120)) * time.Minute,
		MaxSessions:        getEnvInt("MAX_SESSIONS", 200),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),
		OriginVerifySecret: os.Getenv("ORIGIN_VERIFY_SECRET"),
		DisplayMaxWidth:    getEnvInt("DISPLAY_MAX_WIDTH", 800),
		DisplayMaxHeight:   getEnvInt("DISPLAY_MAX_HEIGHT", 600),
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenAIBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
	default:
		return nil, fmt.Errorf("unsupported IMAGE_EDIT_PROVIDER %q (want %s or %s)", cfg.Provider, ProviderOpenAI, ProviderGemini)
	}

	cfg.APIKey = resolveAPIKey(cfg.Provider)

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if cfg.HistoryLimit < 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must not be negative")
	}

	return cfg, nil
}

// APIKeyEnvVars lists the environment variables consulted for the API key,
// in priority order, for the given provider.
func APIKeyEnvVars(provider string) []string {
	if provider == ProviderGemini {
		return []string{"IMAGE_EDIT_API_KEY", "GEMINI_API_KEY"}
	}
	return []string{"IMAGE_EDIT_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"}
}

func resolveAPIKey(provider string) string {
	for _, name := range APIKeyEnvVars(provider) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
