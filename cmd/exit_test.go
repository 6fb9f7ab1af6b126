package cmd

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/shipit-build/shipit/pkg/shellexec"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))

	t.Run("explicit tool status is forwarded verbatim", func(t *testing.T) {
		err := &shellexec.ExitError{Code: 7, Cmd: "signclient sign"}
		assert.Equal(t, 7, exitCode(err))
	})

	t.Run("wrapped tool status is still found", func(t *testing.T) {
		err := eris.Wrapf(&shellexec.ExitError{Code: 3, Cmd: "go test"}, "target test failed")
		assert.Equal(t, 3, exitCode(err))
	})

	t.Run("unstructured failures map to the generic code", func(t *testing.T) {
		assert.Equal(t, 1, exitCode(eris.New("something else broke")))
	})
}
