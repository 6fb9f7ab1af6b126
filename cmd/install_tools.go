package cmd

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shipit-build/shipit/pkg/logctx"
	"github.com/shipit-build/shipit/pkg/pipeline"
	"github.com/shipit-build/shipit/pkg/tools"
)

var installToolsCmd = &cobra.Command{
	Use:   "install-tools",
	Short: "Installs the pinned developer tools",
	Long: `Installs the tools listed in the project's tools.go into the workspace
.tools directory. If you have direnv enabled, they will be available in your
PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noColor, err := cmd.Flags().GetBool("no-color")
		if err != nil {
			return err
		}

		logger := zerolog.New(NewConsoleWriter(noColor))
		ctx := logctx.WithLogger(cmd.Context(), &logger)

		cfgPath, err := pipeline.Discover(".")
		if err != nil {
			return err
		}

		return tools.Install(ctx, filepath.Dir(cfgPath))
	},
}

func init() {
	rootCmd.AddCommand(installToolsCmd)
}
