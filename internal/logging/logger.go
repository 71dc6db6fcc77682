package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// IMAGE_EDIT_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// IMAGE_EDIT_LOG_FORMAT=json switches off the console writer (Lambda, log shippers).
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("IMAGE_EDIT_LOG_LEVEL")))

	if strings.EqualFold(os.Getenv("IMAGE_EDIT_LOG_FORMAT"), "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
