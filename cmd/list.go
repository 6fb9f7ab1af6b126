package cmd

import (
	"github.com/spf13/cobra"

	"github.com/shipit-build/shipit/pkg/pipeline"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the available targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, root, err := loadProject()
		if err != nil {
			return err
		}

		registry, err := pipeline.Register(cfg, root)
		if err != nil {
			return err
		}

		printTargets(registry)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
