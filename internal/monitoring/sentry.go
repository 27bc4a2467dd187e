// Package monitoring wires panic recovery and crash reporting: Sentry
// initialization from a DSN and optional sample rate, plus a recovery
// wrapper the pipeline's goroutines defer so a worker panic is reported
// and the worker can be restarted by the chain supervisor instead of
// crashing the process.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/chainlens/evm-indexer/internal/logging"
)

// Config controls Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
}

// InitSentry initializes the global Sentry client. An empty DSN disables
// reporting without erroring, so local/dev runs work without a Sentry
// project configured.
func InitSentry(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
	})
}

// Flush blocks up to timeout waiting for buffered Sentry events to send,
// called once at shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// RecoverWithSentry recovers a panic, reports it to Sentry, logs it, and
// passes an error describing it to onPanic so the caller's goroutine can
// exit cleanly and let the chain supervisor restart it, rather than taking
// down the process.
func RecoverWithSentry(log *logging.Logger, onPanic func(err error)) {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		if log != nil {
			log.Error().Interface("panic", r).Msg("recovered panic")
		}
		if onPanic != nil {
			onPanic(panicError{r})
		}
	}
}

type panicError struct{ v any }

func (p panicError) Error() string { return "panic: " + toString(p.v) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic value"
}
