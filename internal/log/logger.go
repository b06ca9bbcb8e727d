package log

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of the log file sink.
const (
	maxFileSizeMB  = 10
	maxFileBackups = 3
	maxFileAgeDays = 28
)

// Options configures New.
type Options struct {
	// Verbose lowers the console level from Warn to Debug.
	Verbose bool
	// JSON switches the console output to JSON lines.
	JSON bool
	// File, when set, adds a rotating JSON log at that path. The file sink
	// always records Info and above, whatever Verbose says.
	File string
}

// New builds the application logger. The returned closer releases the log
// file and is a no-op when Options.File is empty.
func New(w io.Writer, opts Options) (*slog.Logger, io.Closer) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if opts.JSON {
		console = slog.NewJSONHandler(w, handlerOpts)
	} else {
		console = slog.NewTextHandler(w, handlerOpts)
	}

	if opts.File == "" {
		return slog.New(NewSecureHandler(console)), nopCloser{}
	}

	file := NewFileWriter(opts.File)
	fileLevel := min(level, slog.LevelInfo)
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: fileLevel})
	return slog.New(NewSecureHandler(NewFanout(console, fileHandler))), file
}

// NewFileWriter returns a size-rotated, compressed log file writer.
func NewFileWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxFileBackups,
		MaxAge:     maxFileAgeDays,
		Compress:   true,
	}
}

// NewSecureLogger returns a text logger writing to w with masking enabled.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	logger, _ := New(w, Options{Verbose: verbose})
	return logger
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	logger, _ := New(w, Options{Verbose: verbose, JSON: true})
	return logger
}

// Fanout delivers every record to each handler that accepts its level.
type Fanout struct {
	handlers []slog.Handler
}

// NewFanout returns a handler writing to all of handlers.
func NewFanout(handlers ...slog.Handler) *Fanout {
	return &Fanout{handlers: handlers}
}

// Enabled reports whether any handler accepts level.
func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of r to each enabled handler and joins their errors.
func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
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

// WithAttrs applies attrs to every handler.
func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: next}
}

// WithGroup applies the group to every handler.
func (f *Fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: next}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
