package obs

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures the process logger. level accepts the usual zerolog
// names (trace..panic); anything unrecognized falls back to info.
func InitLogger(level, service string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = zerolog.New(os.Stdout).
		Level(parsed).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Logger returns the shared structured logger used across the service.
// The pointer addresses a private copy so level methods can be chained
// directly off the call.
func Logger() *zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := logger
	return &l
}

// SetWriterForTests redirects the shared logger and returns a restore
// function. Only intended for test use.
func SetWriterForTests(w io.Writer) func() {
	loggerMu.Lock()
	prev := logger
	logger = logger.Output(w)
	loggerMu.Unlock()
	return func() {
		loggerMu.Lock()
		logger = prev
		loggerMu.Unlock()
	}
}
