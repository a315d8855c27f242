package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select the level, format and optional rotated log file.
type Options struct {
	Level  string    // debug|info|warn|error, default info
	Format string    // text|json, default text
	File   string    // also write to this file, rotated by size
	Output io.Writer // default os.Stdout
}

// Setup installs the default slog logger: Output (plus File when set), teed into ring when it is not nil.
// The returned closer flushes the log file; it is a no-op without one.
func Setup(opts Options, ring *Ring) io.Closer {
	lvl, known := ParseLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	format := strings.ToLower(opts.Format)
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})
	}
	if ring != nil {
		handler = NewHandler(handler, ring)
	}
	slog.SetDefault(slog.New(handler))

	if !known {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", opts.Level))
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format), slog.String("file", opts.File))
	return closer
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values give info and false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "info", "":
		return slog.LevelInfo, true
	default:
		return slog.LevelInfo, false
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
