// Package logging sets up the process logger and provides loggers whose
// messages pass through a message.Annotator before they are written.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"logmark/pkg/message"
)

// logger fields
const (
	ComponentField = "component"
	MessageIDField = "message_id"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// ParseLevel maps debug, info, warn or error (any case) to a zerolog level.
// An empty level is info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "":
		return zerolog.InfoLevel, nil
	case "debug", "info", "warn", "error":
		return zerolog.ParseLevel(strings.ToLower(level))
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
}

// Setup replaces the global logger with one writing JSON lines to w at the
// given level.
func Setup(w io.Writer, level zerolog.Level) {
	if w == nil {
		w = os.Stderr
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Component returns the global logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return log.With().Str(ComponentField, name).Logger()
}

// Logger logs parameterized messages annotated by its Annotator.
//
// A message is only built and rendered when its level is enabled. A trailing
// error argument that no placeholder consumed is logged as the error field.
type Logger struct {
	zl        zerolog.Logger
	annotator message.Annotator
}

// New returns a Logger writing to zl.
func New(zl zerolog.Logger, annotator message.Annotator) *Logger {
	return &Logger{zl: zl, annotator: annotator}
}

// WithContext returns a Logger whose marker is resolved against ctx. The
// context's message id, if any, is added as a field.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zl := l.zl
	if id, ok := message.MessageIDFrom(ctx); ok {
		zl = zl.With().Str(MessageIDField, id).Logger()
	}
	return &Logger{zl: zl, annotator: l.annotator.WithContext(ctx)}
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(template string, args ...any) { l.emit(l.zl.Debug(), template, args) }
func (l *Logger) Info(template string, args ...any)  { l.emit(l.zl.Info(), template, args) }
func (l *Logger) Warn(template string, args ...any)  { l.emit(l.zl.Warn(), template, args) }
func (l *Logger) Error(template string, args ...any) { l.emit(l.zl.Error(), template, args) }

func (l *Logger) emit(e *zerolog.Event, template string, args []any) {
	if !e.Enabled() {
		return
	}
	m := l.annotator.NewParameterized(template, args...)
	if err := m.Err(); err != nil {
		e = e.Err(err)
	}
	e.Msg(m.Format())
}
