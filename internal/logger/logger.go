package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. It is usable before Init and writes JSON to
// stderr until then.
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init configures Log. format is "text" for a human readable console or
// anything else for JSON lines.
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

func InitWriter(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format == "text" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	Log = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// With returns a sub-logger tagged with the component name, e.g. "nats".
func With(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
