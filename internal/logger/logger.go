// Package logger configures the global zerolog logger.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"

const callerWidth = 24

// Options describe where logs go and how much is written.
type Options struct {
	Level string
	// File, when set, receives a copy of every line.
	File string
	// Out is the console sink. Nil means stderr, so logs never interleave
	// with the game on stdout.
	Out io.Writer
}

// FromEnv reads LOG_LEVEL and LOG_FILE, using fallback when no level is set.
func FromEnv(fallback string) Options {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = fallback
	}
	return Options{Level: level, File: os.Getenv("LOG_FILE")}
}

// Init sets up the global logger from the environment with level "warn",
// which keeps the terminal game quiet.
func Init() {
	InitWithDefault("warn")
}

// InitWithDefault is Init with a different fallback level. Setup problems
// are logged and the logger keeps whatever part of the setup worked.
func InitWithDefault(fallback string) {
	if _, err := Setup(FromEnv(fallback)); err != nil {
		log.Warn().Err(err).Msg("Logger setup incomplete")
	}
}

// Setup installs the global logger. The returned closer releases the log
// file and is nil when there is none. An unknown level falls back to info.
func Setup(opts Options) (io.Closer, error) {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = caller

	var errs []error
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		if err != nil {
			errs = append(errs, fmt.Errorf("log level %q: %w", opts.Level, err))
		}
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := opts.Out
	color := false
	if out == nil {
		out = os.Stderr
		color = isatty.IsTerminal(os.Stderr.Fd())
	}
	var sink io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: milliTimeFormat, NoColor: !color}

	var closer io.Closer
	if opts.File != "" {
		f, ferr := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			errs = append(errs, fmt.Errorf("log file: %w", ferr))
		} else {
			sink = io.MultiWriter(sink, f)
			closer = f
		}
	}

	log.Logger = log.Output(sink).With().Caller().Logger()
	log.Debug().Str("level", level.String()).Bool("file", closer != nil).Msg("Logger initialized")
	return closer, errors.Join(errs...)
}

// caller pads or trims file:line to a fixed column.
func caller(_ uintptr, file string, line int) string {
	path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(path) >= callerWidth {
		return path[len(path)-callerWidth:]
	}
	return path + strings.Repeat(" ", callerWidth-len(path))
}

// ForMatch returns the global logger tagged with a match id.
func ForMatch(id string) *zerolog.Logger {
	l := log.With().Str("matchId", id).Logger()
	return &l
}
