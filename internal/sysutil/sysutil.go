// Package sysutil holds process-level helpers shared by the CLI commands:
// global logger setup and build version lookup.
package sysutil

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// ConfigureLogging installs the global logger: level, RFC3339 UTC
// timestamps, a console writer when pretty is set. The logger also becomes
// the fallback for zerolog.Ctx on contexts that carry none.
func ConfigureLogging(level string, pretty bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	l := zerolog.New(w).With().Timestamp().Str("service", "tributaria").Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// Version reports APP_VERSION, else the module version stamped by the Go
// toolchain, else "dev".
func Version() string {
	var build string
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
		build = info.Main.Version
	}
	return FirstNonEmpty(os.Getenv("APP_VERSION"), build, "dev")
}

// FirstNonEmpty returns the first non-empty string from a variadic list.
// If all values are empty, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
