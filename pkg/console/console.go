// Package console renders the user-facing task banners. Color handling is an
// explicit value so there's no process-global to mutate.
package console

import (
	"fmt"
	"os"

	"github.com/mitchellh/colorstring"
)

// Printer writes colored banner lines to stderr.
type Printer struct {
	colorize colorstring.Colorize
}

// NewPrinter returns a Printer; pass noColor to strip all color codes, e.g.
// for CI logs.
func NewPrinter(noColor bool) *Printer {
	return &Printer{
		colorize: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor,
			Reset:   true,
		},
	}
}

// Task prints a top-level banner line.
func (p *Printer) Task(msg string) {
	fmt.Fprintln(os.Stderr, p.colorize.Color("[blue][bold]==>[default] "+msg))
}

// Subtask prints an indented progress line.
func (p *Printer) Subtask(msg string) {
	fmt.Fprintln(os.Stderr, p.colorize.Color("[green][bold]  ->[reset] "+msg))
}

// Error prints an indented failure line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(os.Stderr, p.colorize.Color("[red][bold]  ->[reset] "+msg))
}
