// Package diag is a structured, leveled reporting sink used throughout the
// mixer core and the packages around it. It intentionally predates any
// generic logging framework: every constructor and significant operation in
// this codebase emits exactly one report, carrying sender identity and a
// nesting level rather than a free-form key/value bag.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is the severity of a report.
type Level int

const (
	FAULT Level = iota
	WARNING
	OK
	PENDING
	HEADSUP
)

func (l Level) String() string {
	switch l {
	case FAULT:
		return "FAULT"
	case WARNING:
		return "WARNING"
	case OK:
		return "OK"
	case PENDING:
		return "PENDING"
	case HEADSUP:
		return "HEADSUP"
	default:
		return "UNKNOWN"
	}
}

// ansiCode returns the SGR color code for a severity, matching the original
// engine's SetConsoleTextAttribute palette (FAULT=red, WARNING=yellow,
// OK=green, PENDING=cyan, HEADSUP=magenta).
func (l Level) ansiCode() string {
	switch l {
	case FAULT:
		return "31"
	case WARNING:
		return "33"
	case OK:
		return "32"
	case PENDING:
		return "36"
	case HEADSUP:
		return "35"
	default:
		return "37"
	}
}

// Sink receives reports. Report is safe for concurrent use by multiple
// goroutines; implementations must provide their own synchronization.
type Sink interface {
	Report(sender any, level Level, message string)
	// With returns a child sink nested one indentation level deeper, whose
	// reports are prefixed with the given component name.
	With(name string) Sink
}

// ConsoleSink writes reports to an ANSI-colored console. It is safe for
// concurrent use.
type ConsoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	name   string
	indent int
	color  bool
}

// NewConsole returns a root ConsoleSink writing to stdout.
func NewConsole() *ConsoleSink {
	out := colorable.NewColorableStdout()
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return &ConsoleSink{out: out, color: color}
}

func (c *ConsoleSink) Report(sender any, level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dashes := ""
	for i := 0; i < c.indent; i++ {
		dashes += "-"
	}

	line := fmt.Sprintf("[ %s ] %sFrom [ %T ][ %p ] -> %s\n", level, dashes, sender, sender, message)
	if c.name != "" {
		line = fmt.Sprintf("[ %s ] %s%s: from [ %T ][ %p ] -> %s\n", level, dashes, c.name, sender, sender, message)
	}
	if c.color {
		fmt.Fprintf(c.out, "\x1b[%sm%s\x1b[0m", level.ansiCode(), line)
		return
	}
	fmt.Fprint(c.out, line)
}

func (c *ConsoleSink) With(name string) Sink {
	return &ConsoleSink{out: c.out, name: name, indent: c.indent + 1, color: c.color}
}

// NopSink discards every report. Per the spec, the sink may be a no-op —
// useful for tests and for library consumers that don't want console noise.
type NopSink struct{}

func (NopSink) Report(any, Level, string) {}
func (n NopSink) With(string) Sink        { return n }
