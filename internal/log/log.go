package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	logger   zerolog.Logger
	initOnce sync.Once
	minLevel = LevelInfo
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() {
	initOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		logger = newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	})
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerologLevel(minLevel)).With().Timestamp().Logger()
}

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
	logger = logger.Level(zerologLevel(l))
}

// ParseLevel maps a config string ("debug", "info", "error") to a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "error", "fatal", "panic":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output, writing JSON lines instead of console text.
// Tests use it to capture output.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, nil, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, nil, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, err, kv...)
}

func logWithLevel(level Level, msg string, err error, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.Debug()
	case LevelError:
		ev = l.Error()
	default:
		ev = l.Info()
	}
	if ev == nil {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	// Expect kv as pairs: key, value, key, value, ...
	// If odd number of args, last one is ignored.
	if n := len(kv) &^ 1; n > 0 {
		ev = ev.Fields(kv[:n])
	}
	ev.Msg(msg)
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
