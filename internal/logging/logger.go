// Package logging wraps zerolog with the fields the indexer cares about:
// chain_id and component, mirrored from the request_id/service fields the
// teacher's shared logging package attaches per request.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's levels so callers don't need to import zerolog
// directly just to configure the logger.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls global logger construction.
type Config struct {
	Level  Level
	Pretty bool
}

// DefaultConfig returns info level, non-pretty (JSON) output, suitable for
// production deployments behind log aggregation.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Pretty: false}
}

// Logger is a thin wrapper carrying a zerolog.Logger plus convenience
// constructors for per-component, per-chain child loggers.
type Logger struct {
	zl zerolog.Logger
}

// New builds the root Logger from cfg, writing to stderr.
func New(cfg Config) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(string(cfg.Level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w = os.Stderr
	var zl zerolog.Logger
	if cfg.Pretty {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(w).With().Timestamp().Logger()
	}
	return &Logger{zl: zl}
}

// WithComponent returns a child logger tagging every entry with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithChain returns a child logger tagging every entry with chain_id.
func (l *Logger) WithChain(chainID uint32) *Logger {
	return &Logger{zl: l.zl.With().Uint32("chain_id", chainID).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Fatal logs at fatal level and exits the process; used only for startup
// failures (misconfiguration, with the offending variable named in the
// error, and an unreachable or unmigratable ClickHouse).
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }
