// Package fileutil bundles the small filesystem helpers the pipeline targets
// rely on: in-place text patching and globstar file listing.
package fileutil

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Patch replaces every occurrence of old with repl in the named file. The
// file is only rewritten when the replacement actually changed something; the
// returned bool reports whether a write happened.
func Patch(path, old, repl string) (bool, error) {
	if old == "" {
		return false, eris.New("refusing to replace an empty string")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, eris.Wrapf(err, "could not read %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, eris.Wrapf(err, "could not stat %s", path)
	}

	patched := strings.ReplaceAll(string(data), old, repl)
	if patched == string(data) {
		return false, nil
	}

	err = os.WriteFile(path, []byte(patched), info.Mode())
	if err != nil {
		return false, eris.Wrapf(err, "could not write %s", path)
	}

	return true, nil
}
