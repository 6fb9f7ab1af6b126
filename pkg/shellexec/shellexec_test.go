package shellexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipit-build/shipit/pkg/logctx"
)

func loggedContext(buf *bytes.Buffer) context.Context {
	logger := zerolog.New(buf)
	return logctx.WithLogger(context.Background(), &logger)
}

func TestRedact(t *testing.T) {
	line := redact([]string{"s3cret"}, "push -k s3cret -s https://feed")
	assert.Equal(t, "push -k ***** -s https://feed", line)

	t.Run("short secrets are ignored", func(t *testing.T) {
		assert.Equal(t, "a b c", redact([]string{"a"}, "a b c"))
	})

	t.Run("multiple occurrences", func(t *testing.T) {
		assert.Equal(t, "***** *****", redact([]string{"key"}, "key key"))
	})
}

func TestRunCommandLineIsRedactedInLogs(t *testing.T) {
	var buf bytes.Buffer
	ctx := loggedContext(&buf)

	err := RunScript(ctx, Options{Redact: []string{"hunter2"}}, "test", "true hunter2")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "*****")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRunMissingCommand(t *testing.T) {
	err := Run(context.Background(), Options{}, "definitely-not-a-real-binary-42")
	require.Error(t, err)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr), "a missing binary is not a tool exit status")
}

func TestOutput(t *testing.T) {
	out, err := Output(context.Background(), Options{}, "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestOutputNonZeroExit(t *testing.T) {
	_, err := Output(context.Background(), Options{}, "sh", "-c", "exit 4")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 4, exitErr.Code)
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	err := RunScript(context.Background(), Options{Dir: dir}, "test", "echo hi > marker.txt")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestRunScriptEnv(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Dir: dir, Env: map[string]string{"GREETING": "hello"}}
	err := RunScript(context.Background(), opts, "test", "echo $GREETING > out.txt")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRunScriptExitStatus(t *testing.T) {
	err := RunScript(context.Background(), Options{}, "test", "exit 3")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
}

func TestRunScriptStopsAfterFailure(t *testing.T) {
	dir := t.TempDir()
	err := RunScript(context.Background(), Options{Dir: dir}, "test", "false\necho too-late > marker.txt")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "marker.txt"))
	assert.True(t, os.IsNotExist(statErr), "statements after a failure must not run")
}

func TestRunScriptParseError(t *testing.T) {
	err := RunScript(context.Background(), Options{}, "test", "if then fi (")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
