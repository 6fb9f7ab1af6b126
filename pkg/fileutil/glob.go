package fileutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

func shellReadDir(path string) ([]os.FileInfo, error) {
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, len(entries))
	for idx, entry := range entries {
		infos[idx], err = entry.Info()
		if err != nil {
			return nil, err
		}
	}

	return infos, nil
}

// Glob expands the given shell patterns relative to base and returns all
// matching paths. `**` is supported and matches nested directories. Patterns
// that don't match anything simply contribute no results.
func Glob(base string, patterns []string) ([]string, error) {
	result := []string{}
	cfg := expand.Config{
		ReadDir:  shellReadDir,
		GlobStar: true,
	}

	parser := syntax.NewParser()

	for _, item := range patterns {
		if !filepath.IsAbs(item) {
			item = filepath.Join(base, item)
		}
		item = filepath.ToSlash(filepath.Clean(item))

		words := make([]*syntax.Word, 0)
		err := parser.Words(strings.NewReader(item), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse pattern %s", item)
		}

		matches, err := expand.Fields(&cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", item)
		}

		for _, match := range matches {
			// An unmatched pattern is returned verbatim; skip those.
			if !strings.Contains(match, "*") {
				result = append(result, match)
			}
		}
	}

	return result, nil
}
