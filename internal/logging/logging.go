// Package logging constructs the process-wide zerolog sink, injected into
// every component at construction time rather than accessed as ambient
// global state (see SPEC_FULL.md's ambient-stack notes).
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger writing to w (os.Stdout
// when w is nil). When verbose is false the minimum level is Info; Debug
// otherwise.
func New(w io.Writer, verbose bool) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
