// Package logging builds the run logger: a console handler at the
// configured level teed with a debug-level handler writing to a
// size-rotated file under the log directory.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Options configures New.
type Options struct {
	// Dir receives process_<YYYYMMDD_HHMMSS>.log. Empty disables the file.
	Dir string

	// Level is the console level ("debug", "info", "warn", "error").
	Level string

	// MaxBytes and Backups control file rotation.
	MaxBytes int64
	Backups  int

	// Console receives console output. Defaults to os.Stderr.
	Console io.Writer

	// Now stamps the log file name. Defaults to time.Now.
	Now func() time.Time
}

// Logger is the run logger plus the file it writes to.
type Logger struct {
	*slog.Logger

	// FilePath is the active log file, "" when file logging is disabled.
	FilePath string

	file *RotatingFile
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New creates the run logger.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: consoleAttrs(ShouldColorize(console)),
	})

	l := &Logger{}
	var fileHandler slog.Handler
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		path := filepath.Join(opts.Dir, fmt.Sprintf("process_%s.log", now().Format("20060102_150405")))
		l.file = NewRotatingFile(path, opts.MaxBytes, opts.Backups)
		l.FilePath = path
		fileHandler = slog.NewTextHandler(l.file, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	l.Logger = slog.New(NewFanoutHandler(consoleHandler, fileHandler))
	return l, nil
}

// ParseLevel maps a level name to a slog level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(NewFanoutHandler())
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiGray   = "\x1b[90m"
)

// consoleAttrs shortens timestamps and, on terminals, colors the level.
func consoleAttrs(colorize bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if t, ok := a.Value.Any().(time.Time); ok {
				return slog.String(slog.TimeKey, t.Format("15:04:05"))
			}
		case slog.LevelKey:
			if !colorize {
				return a
			}
			level, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			color := ansiBlue
			switch {
			case level >= slog.LevelError:
				color = ansiRed
			case level >= slog.LevelWarn:
				color = ansiYellow
			case level < slog.LevelInfo:
				color = ansiGray
			}
			return slog.String(slog.LevelKey, color+level.String()+ansiReset)
		}
		return a
	}
}

// ShouldColorize reports whether writer is a terminal that accepts ANSI colors.
func ShouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
