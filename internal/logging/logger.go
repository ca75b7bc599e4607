package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar overrides the configured log level when set.
const LevelEnvVar = "PHOTOBOOTH_LOG_LEVEL"

// Init initializes the global logger.
// The level comes from PHOTOBOOTH_LOG_LEVEL when set, otherwise from the
// configured value: debug, info, warn, error (default: info).
// Output is human-readable when stderr is a terminal and JSON lines otherwise.
func Init(configured string) {
	level := configured
	if env := os.Getenv(LevelEnvVar); env != "" {
		level = env
	}
	zerolog.SetGlobalLevel(ParseLevel(level))

	log.Logger = zerolog.New(output(os.Stderr)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func output(f *os.File) io.Writer {
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return zerolog.ConsoleWriter{Out: f}
	}
	return f
}
