// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. pretty selects a human-readable
// console writer; otherwise JSON lines go to stderr. Unknown levels fall back
// to info.
func Setup(level string, pretty bool) zerolog.Logger {
	return SetupWriter(os.Stderr, level, pretty)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(out io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Str("app", "curator").Logger()
	log.Logger = logger
	return logger
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
