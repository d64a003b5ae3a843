// Package eventlog builds the process-wide structured logger. The logger is
// constructed once in the cli layer and handed to every component.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type Options struct {
	Dir     string
	Level   string
	Console io.Writer
	Extra   []slog.Handler
	Now     func() time.Time
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", strings.TrimSpace(raw))
	}
}

// New opens logs/app_<timestamp>.log under opts.Dir and fans every record out
// to the file, the optional console writer and any extra handlers. With an
// empty Dir no file is created.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	ho := &slog.HandlerOptions{Level: level}

	handlers := make([]slog.Handler, 0, 2+len(opts.Extra))
	var closer io.Closer = nopCloser{}

	dir := strings.TrimSpace(opts.Dir)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		name := filepath.Join(dir, fmt.Sprintf("app_%s.log", now().Format("20060102_150405")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", name, err)
		}
		closer = f
		handlers = append(handlers, slog.NewTextHandler(f, ho))
	}
	if opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, ho))
	}
	for _, h := range opts.Extra {
		handlers = append(handlers, &leveled{Handler: h, min: level})
	}

	if len(handlers) == 0 {
		return slog.New(Discard()), closer, nil
	}
	return slog.New(Fanout(handlers...)), closer, nil
}

// Discard returns a handler that drops everything.
func Discard() slog.Handler {
	return slog.DiscardHandler
}

type fanout struct {
	handlers []slog.Handler
}

func Fanout(handlers ...slog.Handler) slog.Handler {
	return &fanout{handlers: handlers}
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanout{handlers: next}
}

type leveled struct {
	slog.Handler
	min slog.Level
}

func (l *leveled) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= l.min && l.Handler.Enabled(ctx, level)
}

func (l *leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveled{Handler: l.Handler.WithAttrs(attrs), min: l.min}
}

func (l *leveled) WithGroup(name string) slog.Handler {
	return &leveled{Handler: l.Handler.WithGroup(name), min: l.min}
}
