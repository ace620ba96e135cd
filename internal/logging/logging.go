// Package logging provides application-wide logging configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Format selects how log lines are written.
type Format string

const (
	// FormatConsole writes human-readable lines, used by the CLI.
	FormatConsole Format = "console"
	// FormatJSON writes one JSON object per line, used by long-running servers.
	FormatJSON Format = "json"
)

var debugEnabled bool

// ParseFormat validates a format name. An empty name selects FormatConsole.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown log format %q (want console or json)", name)
}

// Init initializes the global logger with console output on stderr.
func Init(debug bool) {
	InitWith(debug, FormatConsole, os.Stderr)
}

// InitWith initializes the global logger with an explicit format and sink.
func InitWith(debug bool, format Format, out io.Writer) {
	debugEnabled = debug
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = out
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// DebugEnabled reports whether debug logging is enabled.
func DebugEnabled() bool {
	return debugEnabled
}
