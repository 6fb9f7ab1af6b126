// Package tools installs the developer tools pinned in the project's
// tools.go into the workspace .tools directory.
package tools

import (
	"context"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shipit-build/shipit/pkg/logctx"
	"github.com/shipit-build/shipit/pkg/shellexec"
)

// Install reads the blank imports of <root>/tools.go and `go install`s each
// of them with GOBIN pointing at <root>/.tools.
func Install(ctx context.Context, root string) error {
	binPath := filepath.Join(root, ".tools")
	toolsFile := filepath.Join(root, "tools.go")

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, toolsFile, nil, parser.ImportsOnly)
	if err != nil {
		return eris.Wrapf(err, "failed to parse %s", toolsFile)
	}

	opts := shellexec.Options{
		Dir: root,
		Env: map[string]string{"GOBIN": binPath},
	}

	for _, imported := range parsed.Imports {
		dep := strings.Trim(imported.Path.Value, `"`)
		logctx.FromContext(ctx).Info().Str("tool", dep).Msg("installing")

		err := shellexec.Run(ctx, opts, "go", "install", dep)
		if err != nil {
			return eris.Wrapf(err, "failed to install %s", dep)
		}
	}

	return nil
}
