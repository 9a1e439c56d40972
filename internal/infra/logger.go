package infra

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
)

// NewLogger builds the process logger. Console output in dev, JSON lines otherwise.
func NewLogger(env string, cfg config.LoggingConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(resolveLevel(env, cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(cfg.Format, "console") || (cfg.Format == "" && strings.EqualFold(env, "dev")) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// resolveLevel parses an explicit level. Without one, dev logs at debug and
// every other environment at info.
func resolveLevel(env, name string) zerolog.Level {
	if name == "" {
		if strings.EqualFold(env, "dev") {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
