// Package logging builds the zerolog.Logger every cmd/ entrypoint runs
// with. The teacher's pkg/logger hand-rolled ANSI color codes and a
// package-level singleton (pkg/logger/logger.go); this keeps its banner/
// section presentation but replaces the logging backend itself with
// github.com/rs/zerolog over github.com/mattn/go-colorable, so callers get
// structured, leveled fields instead of Printf-formatted strings.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger at the given level, writing
// through go-colorable so ANSI sequences render correctly on Windows
// consoles as well as ANSI terminals.
func New(level zerolog.Level) zerolog.Logger {
	out := colorable.NewColorableStdout()
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Banner prints the startup banner, preserving the teacher's box-drawing
// art (core/main.go's logger.Banner) ahead of structured logging taking
// over for everything else.
func Banner(w io.Writer, title, version string) {
	const art = `
╔═══════════════════════════════════════════════════════════╗
║                                                             ║
║   ██████╗ ██╗   ██╗██████╗ ██████╗                        ║
║   ██╔══██╗██║   ██║██╔══██╗██╔══██╗                       ║
║   ██████╔╝██║   ██║██║  ██║██████╔╝                       ║
║   ██╔══██╗██║   ██║██║  ██║██╔═══╝                        ║
║   ██║  ██║╚██████╔╝██████╔╝██║                            ║
║   ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝                            ║
║                                                             ║
║   %-57s ║
║   version %-48s ║
║                                                             ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Fprintf(w, art, title, version)
}

// Section prints a section header between startup phases, matching the
// teacher's logger.Section helper.
func Section(w io.Writer, title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Fprintf(w, "\n╔%s╗\n║ %-61s ║\n╚%s╝\n\n", border, title, border)
}

// LevelFromString maps a config-supplied level name to a zerolog.Level,
// defaulting to Info on anything unrecognised.
func LevelFromString(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Stderr is the console writer target used when a caller wants logs kept
// separate from banner/section output printed to stdout.
func Stderr() io.Writer { return os.Stderr }
