package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shipit-build/shipit/pkg/console"
	"github.com/shipit-build/shipit/pkg/logctx"
	"github.com/shipit-build/shipit/pkg/pipeline"
	"github.com/shipit-build/shipit/pkg/shellexec"
	"github.com/shipit-build/shipit/pkg/targets"
)

var rootCmd = &cobra.Command{
	Use:   "shipit [target...]",
	Short: "Builds, packages and publishes the project",
	Long: `shipit looks for the next shipit.yml above the current directory and runs
the given pipeline targets in dependency order. Without arguments it lists
the available targets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		skipDeps, err := cmd.Flags().GetBool("skip-deps")
		if err != nil {
			return err
		}

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}

		noColor, err := cmd.Flags().GetBool("no-color")
		if err != nil {
			return err
		}

		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger := zerolog.New(NewConsoleWriter(noColor)).Level(level)
		ctx := logctx.WithLogger(cmd.Context(), &logger)

		cfg, root, err := loadProject()
		if err != nil {
			return err
		}

		registry, err := pipeline.Register(cfg, root)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			printTargets(registry)
			return nil
		}

		printer := console.NewPrinter(noColor)
		printer.Task(fmt.Sprintf("%s %s", cfg.Project, cfg.Version))

		start := time.Now()
		result, err := targets.Run(ctx, registry, args, targets.Options{
			SkipDeps: skipDeps,
			Verbose:  verbose,
		})
		if err != nil {
			if result != nil && result.Failed != "" {
				printer.Error(fmt.Sprintf("Failed at target %s", result.Failed))
			} else {
				printer.Error("Failed")
			}

			var exitErr *shellexec.ExitError
			if !eris.As(err, &exitErr) {
				// no structured exit status, dump the whole chain for diagnosis
				fmt.Fprintln(os.Stderr, eris.ToString(err, true))
			}
			return err
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		printer.Task(fmt.Sprintf("Done (%d actions in %s)", len(result.Executed), elapsed))
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolP("skip-deps", "s", false,
		"run only the named targets, their dependencies are validated but not executed")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log scheduling details")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
}

func loadProject() (*pipeline.Config, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	cfgPath, err := pipeline.Discover(wd)
	if err != nil {
		return nil, "", err
	}

	cfg, err := pipeline.Load(cfgPath)
	if err != nil {
		return nil, "", err
	}

	return cfg, filepath.Dir(cfgPath), nil
}

func printTargets(registry *targets.Registry) {
	fmt.Println("Available targets:")

	maxNameLen := 0
	for _, name := range registry.Names() {
		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
	}

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range registry.Names() {
		target, _ := registry.Get(name)
		fmt.Printf(lineFmt, name+":", target.Desc)
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return exitCode(rootCmd.Execute())
}

// exitCode maps a run failure to the process exit status. A failure carrying
// an explicit tool exit status is forwarded verbatim, everything else maps to
// the generic code 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *shellexec.ExitError
	if eris.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}

	return 1
}
