// Package logger configures the process-wide zerolog root logger. Components
// derive their own child loggers from the one returned here.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger and sets the global level. format "pretty"
// emits human-readable console output for development; anything else emits
// JSON lines. An unknown level falls back to info.
func Setup(level, format string) zerolog.Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(format, "pretty") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}
