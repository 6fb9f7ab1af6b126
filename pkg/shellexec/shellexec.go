// Package shellexec invokes external tools for target actions. Plain argv
// invocations go through Run/Output, inline shell snippets through RunScript
// which uses mvdan.cc/sh so the same script works on every platform.
package shellexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shipit-build/shipit/pkg/logctx"
)

// ExitError reports that an external tool finished with a non-zero status.
// The code is preserved so callers can forward it as the process exit status.
type ExitError struct {
	Code int
	Cmd  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %s exited with status %d", e.Cmd, e.Code)
}

// Options configures an invocation.
type Options struct {
	// Dir is the working directory, defaults to the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env map[string]string
	// Redact lists sensitive values (API keys and the like) that must never
	// show up in log output. Matching substrings of the logged command line
	// are masked.
	Redact []string
}

// Run executes the given command and streams its output to the process
// stdout/stderr. Non-zero exits are reported as *ExitError.
func Run(ctx context.Context, opts Options, name string, args ...string) error {
	cmd := command(ctx, opts, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logCommand(ctx, opts, name, args)
	return wait(cmd, redact(opts.Redact, cmdline(name, args)))
}

// Output executes the given command and returns its trimmed stdout.
func Output(ctx context.Context, opts Options, name string, args ...string) (string, error) {
	cmd := command(ctx, opts, name, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	logCommand(ctx, opts, name, args)
	err := wait(cmd, redact(opts.Redact, cmdline(name, args)))
	return strings.TrimSpace(stdout.String()), err
}

func command(ctx context.Context, opts Options, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir

	if len(opts.Env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range opts.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
		}
	}

	return cmd
}

func wait(cmd *exec.Cmd, loggedCmd string) error {
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var execErr *exec.ExitError
	if eris.As(err, &execErr) {
		return &ExitError{Code: execErr.ExitCode(), Cmd: loggedCmd}
	}

	return eris.Wrapf(err, "failed to run %s", loggedCmd)
}

func logCommand(ctx context.Context, opts Options, name string, args []string) {
	logctx.FromContext(ctx).Info().
		Bool("command", true).
		Msg(redact(opts.Redact, cmdline(name, args)))
}

func cmdline(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// redact masks every occurrence of the given secrets in line. Secrets shorter
// than two characters are ignored to avoid masking random single letters.
func redact(secrets []string, line string) string {
	for _, secret := range secrets {
		if len(secret) < 2 {
			continue
		}

		line = strings.ReplaceAll(line, secret, "*****")
	}

	return line
}
