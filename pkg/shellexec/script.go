package shellexec

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/shipit-build/shipit/pkg/logctx"
)

func scriptEnv(env map[string]string) expand.Environ {
	envVars := os.Environ()

	for name, value := range env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// RunScript parses the given POSIX shell snippet and executes it statement by
// statement through the embedded interpreter. Each statement is logged before
// it runs. The script runs with `set -e` semantics; a non-zero exit surfaces
// as *ExitError.
func RunScript(ctx context.Context, opts Options, name, script string) error {
	parser := syntax.NewParser()
	parsed, err := parser.Parse(strings.NewReader(script), name)
	if err != nil {
		return eris.Wrapf(err, "failed to parse script %s", name)
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(scriptEnv(opts.Env)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize the shell interpreter")
	}

	printer := syntax.NewPrinter(syntax.Minify(true))
	buffer := strings.Builder{}

	for _, stmt := range parsed.Stmts {
		buffer.Reset()
		printer.Print(&buffer, stmt)
		logctx.FromContext(ctx).Info().
			Bool("command", true).
			Msg(redact(opts.Redact, buffer.String()))

		err = runner.Run(ctx, stmt)
		if err != nil {
			if code, ok := interp.IsExitStatus(err); ok {
				return &ExitError{Code: int(code), Cmd: redact(opts.Redact, buffer.String())}
			}

			return eris.Wrapf(err, "script %s failed", name)
		}

		if runner.Exited() {
			break
		}
	}

	return nil
}
