package logger

import (
	"headless-cms/internal/config"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ComponentField is the field that names the subsystem a log entry came from.
const ComponentField = "component"

// Logger defines a standard interface for logging.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(err error, msg string)
	Fatal(err error, msg string)
	With(fields map[string]interface{}) Logger
	// Component returns a sub-logger tagged with the subsystem name.
	Component(name string) Logger
}

// zerologLogger is an implementation of the Logger interface using zerolog.
type zerologLogger struct {
	logger zerolog.Logger
}

// New creates a Logger writing to w (stdout when nil). Format "console"
// gives human-readable lines, anything else JSON. An empty level means
// info. An unknown level also falls back to info, and that is logged as
// a warning.
func New(cfg config.LogConfig, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	output := w
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stdout}
	}

	level := zerolog.InfoLevel
	var badLevel bool
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			badLevel = true
		} else {
			level = parsed
		}
	}

	l := &zerologLogger{logger: zerolog.New(output).Level(level).With().Timestamp().Logger()}
	if badLevel {
		l.logger.Warn().Str("level", cfg.Level).Msg("Invalid log level, defaulting to info")
	}
	return l
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

func (l *zerologLogger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *zerologLogger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *zerologLogger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *zerologLogger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

func (l *zerologLogger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// With creates a sub-logger with additional fields.
func (l *zerologLogger) With(fields map[string]interface{}) Logger {
	return &zerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}

func (l *zerologLogger) Component(name string) Logger {
	return &zerologLogger{logger: l.logger.With().Str(ComponentField, name).Logger()}
}
