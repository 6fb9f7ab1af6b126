package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ConsoleWriter renders zerolog's JSON events as short colored lines. Target
// actions stream their own output directly to stdout/stderr; this writer only
// handles the runner's bookkeeping messages.
type ConsoleWriter struct {
	colorize colorstring.Colorize
	buffer   strings.Builder
	lock     sync.Mutex
}

func NewConsoleWriter(noColor bool) *ConsoleWriter {
	return &ConsoleWriter{
		colorize: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor,
		},
	}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal", "error":
		w.buffer.WriteString("[red]")
	case "warn":
		w.buffer.WriteString("[yellow]")
	case "debug", "trace":
		w.buffer.WriteString("[blue]")
	default:
		w.buffer.WriteString("[green]")
	}

	target, ok := evt["target"]
	if ok {
		w.buffer.WriteString(target.(string) + ": ")
	}

	if evt["level"] == "error" {
		w.buffer.WriteString("Error: ")
	}

	if msg, ok := evt["message"].(string); ok {
		w.buffer.WriteString(msg)
	}

	elapsed, ok := evt["elapsed"]
	if ok {
		w.buffer.WriteString(fmt.Sprintf(" (%vms)", elapsed))
	}

	errorDetails, ok := evt["error"]
	if ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(errorDetails.(string))
	}

	if os.Getenv("SHIPIT_DEBUG") != "" {
		w.buffer.WriteString("\n")
		for name, value := range evt {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, value))
		}
	}

	w.buffer.WriteString("[reset]\n")
	return fmt.Fprint(os.Stderr, w.colorize.Color(w.buffer.String()))
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("SHIPIT_DEBUG") != "")
	}
}
