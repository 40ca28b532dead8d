package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// teeWriter is a thread-safe writer that sends output to a target and,
// if configured, to a log file.
type teeWriter struct {
	mu     sync.Mutex
	target io.Writer
	file   *os.File
}

func (w *teeWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error

	if w.target != nil {
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}

	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return len(p), firstErr
}

var (
	defaultLogger *slog.Logger
	writer        *teeWriter
)

// ParseLevel maps DEBUG, INFO, WARN and ERROR to slog levels. Anything
// else yields INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the logging system. Output goes to stderr and, when
// logFilePath is not empty, is appended to that file too.
func Init(levelStr, formatStr, logFilePath string) error {
	writer = &teeWriter{target: os.Stderr}

	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writer.file = file
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if strings.ToLower(formatStr) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)

	return nil
}

// SetOutput replaces the live target. A nil target leaves only the file.
func SetOutput(newTarget io.Writer) {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	writer.target = newTarget
}

// Close closes the log file, if any.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.file == nil {
		return nil
	}
	err := writer.file.Close()
	writer.file = nil
	return err
}
