// Package logging wires a zerolog sink into an slog.Handler at the
// process boundary. Library code throughout the engine logs exclusively
// via log/slog; only the cmd/ entry point reaches for zerolog directly.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// zerologHandler adapts slog.Record to a zerolog.Logger, letting the rest
// of the codebase depend only on slog while operators still get
// zerolog's leveled console/JSON writers.
type zerologHandler struct {
	logger zerolog.Logger
}

// NewHandler builds an slog.Handler backed by a zerolog console writer at
// the given level ("debug", "info", "warn", "error").
func NewHandler(level string) slog.Handler {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
	return &zerologHandler{logger: logger}
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.logger.GetLevel() <= zerolog.DebugLevel
}

func (h *zerologHandler) Handle(_ context.Context, record slog.Record) error {
	var event *zerolog.Event
	switch {
	case record.Level >= slog.LevelError:
		event = h.logger.Error()
	case record.Level >= slog.LevelWarn:
		event = h.logger.Warn()
	case record.Level >= slog.LevelInfo:
		event = h.logger.Info()
	default:
		event = h.logger.Debug()
	}
	record.Attrs(func(a slog.Attr) bool {
		event = event.Interface(a.Key, a.Value.Any())
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	ctx := h.logger.With()
	for _, a := range attrs {
		ctx = ctx.Interface(a.Key, a.Value.Any())
	}
	return &zerologHandler{logger: ctx.Logger()}
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	// zerolog has no native group nesting; the group name is dropped and
	// later attributes are logged under their own keys, unprefixed.
	return h
}

// Bootstrap installs a zerolog-backed slog.Logger as the process default
// and returns it for direct use by cmd/ code that wants structured
// fields without going through slog's generic API.
func Bootstrap(level string) *slog.Logger {
	logger := slog.New(NewHandler(level))
	slog.SetDefault(logger)
	return logger
}
