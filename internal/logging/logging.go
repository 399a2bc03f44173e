package logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls where log output goes
type Options struct {
	Level string
	// Console mirrors output to stderr. Turn it off while a TUI owns the terminal.
	Console bool
	// Path overrides the platform log file location
	Path string
}

// New creates a zerolog logger writing to the log file and, optionally, the console
func New(opts Options) zerolog.Logger {
	logPath := opts.Path
	if logPath == "" {
		logPath = LogPath()
	}

	writers := make([]io.Writer, 0, 2)
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Ensure directory exists
	os.MkdirAll(filepath.Dir(logPath), 0755)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		if !opts.Console {
			log.Fatal().Err(err).Str("path", logPath).Msg("Failed to open log file")
		}
		log.Warn().Err(err).Str("path", logPath).Msg("Logging to console only")
	} else {
		writers = append(writers, logFile)
	}

	multi := zerolog.MultiLevelWriter(writers...)

	return zerolog.New(multi).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Caller().Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// LogPath returns platform-specific log file path
func LogPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/state"
		}
	}

	return filepath.Join(base, "audioscope", "audioscope.log")
}
