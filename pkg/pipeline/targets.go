package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/shipit-build/shipit/pkg/download"
	"github.com/shipit-build/shipit/pkg/fileutil"
	"github.com/shipit-build/shipit/pkg/logctx"
	"github.com/shipit-build/shipit/pkg/pack"
	"github.com/shipit-build/shipit/pkg/shellexec"
	"github.com/shipit-build/shipit/pkg/targets"
)

// Register builds the complete target registry for the given project. root is
// the directory containing shipit.yml; every relative path in the config is
// resolved against it.
func Register(cfg *Config, root string) (*targets.Registry, error) {
	registry := targets.NewRegistry()
	p := &project{cfg: cfg, root: root}

	defs := []*targets.Target{
		p.scriptTarget("clean", "Removes build output", nil),
		p.scriptTarget("restore", "Restores external dependencies", nil),
		p.scriptTarget("build", "Compiles the project", []string{"restore"}),
		p.scriptTarget("test", "Runs the test suite", []string{"build"}),
		{
			Name:   "patch-version",
			Desc:   "Writes the release version into the configured files",
			Action: p.patchVersion,
		},
		{
			Name:   "packages",
			Desc:   "Bundles the build artifacts into a .spk package",
			Deps:   []string{"test", "patch-version"},
			Action: p.buildPackages,
		},
		{
			Name:   "sign-packages",
			Desc:   "Signs the produced packages",
			Deps:   []string{"packages"},
			Action: p.signPackages,
		},
		{
			Name:   "push",
			Desc:   "Pushes the packages to the configured feed",
			Deps:   []string{"sign-packages"},
			Action: p.pushPackages,
		},
		{
			Name: "ci",
			Desc: "Everything a CI run needs: tests plus packages",
			Deps: []string{"test", "packages"},
		},
		{
			Name: "default",
			Desc: "Compiles and tests the project",
			Deps: []string{"build", "test"},
		},
	}

	for _, target := range defs {
		if err := registry.Add(target); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

type project struct {
	cfg  *Config
	root string
}

// scriptTarget wires a shipit.yml script into a target. Targets without a
// configured script become pure aggregation nodes.
func (p *project) scriptTarget(name, desc string, deps []string) *targets.Target {
	target := &targets.Target{
		Name: name,
		Desc: desc,
		Deps: deps,
	}

	script, ok := p.cfg.Scripts[name]
	if ok && strings.TrimSpace(script) != "" {
		target.Action = func(ctx context.Context) (targets.Status, error) {
			err := shellexec.RunScript(ctx, shellexec.Options{Dir: p.root}, name, script)
			if err != nil {
				return targets.StatusFailed, err
			}

			return targets.StatusDone, nil
		}
	}

	return target
}

func (p *project) patchVersion(ctx context.Context) (targets.Status, error) {
	if len(p.cfg.VersionFiles) == 0 {
		logctx.FromContext(ctx).Warn().Msg("no version files configured, nothing to patch")
		return targets.StatusSkipped, nil
	}

	for _, file := range p.cfg.VersionFiles {
		path := filepath.Join(p.root, file.Path)
		changed, err := fileutil.Patch(path, file.Match, p.cfg.Version)
		if err != nil {
			return targets.StatusFailed, err
		}

		logctx.FromContext(ctx).Info().
			Str("path", file.Path).
			Bool("changed", changed).
			Msg("patched version")
	}

	return targets.StatusDone, nil
}

func (p *project) bundlePath() string {
	name := fmt.Sprintf("%s-%s.spk", p.cfg.Project, p.cfg.Version)
	return filepath.Join(p.root, p.cfg.Packages.Out, name)
}

func (p *project) buildPackages(ctx context.Context) (targets.Status, error) {
	artifacts, err := fileutil.Glob(p.root, p.cfg.Packages.Include)
	if err != nil {
		return targets.StatusFailed, eris.Wrap(err, "failed to resolve the package contents")
	}

	if len(artifacts) == 0 {
		return targets.StatusFailed, eris.New("the package patterns didn't match any build artifacts")
	}

	err = os.MkdirAll(filepath.Join(p.root, p.cfg.Packages.Out), 0770)
	if err != nil {
		return targets.StatusFailed, eris.Wrap(err, "failed to create the package directory")
	}

	bundlePath := p.bundlePath()
	writer, err := pack.NewWriter(bundlePath)
	if err != nil {
		return targets.StatusFailed, err
	}

	for _, artifact := range artifacts {
		name, err := filepath.Rel(p.root, artifact)
		if err != nil {
			name = filepath.Base(artifact)
		}
		name = filepath.ToSlash(name)

		err = writer.AddFile(name, artifact)
		if err != nil {
			writer.Close()
			return targets.StatusFailed, err
		}

		logctx.FromContext(ctx).Info().Str("artifact", name).Msg("bundled")
	}

	err = writer.Close()
	if err != nil {
		return targets.StatusFailed, err
	}

	logctx.FromContext(ctx).Info().
		Str("bundle", filepath.Base(bundlePath)).
		Int("artifacts", len(artifacts)).
		Msg("package written")
	return targets.StatusDone, nil
}

// verifyBundle makes sure the bundle parses before it's handed to external
// tools.
func verifyBundle(path string) error {
	reader, err := pack.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if len(reader.Entries()) == 0 {
		return eris.Errorf("bundle %s is empty", path)
	}

	return nil
}

func (p *project) listBundles() ([]string, error) {
	bundles, err := fileutil.Glob(filepath.Join(p.root, p.cfg.Packages.Out), []string{"*.spk"})
	if err != nil {
		return nil, eris.Wrap(err, "failed to list the produced packages")
	}

	if len(bundles) == 0 {
		return nil, eris.New("no packages found, did the packages target run?")
	}

	return bundles, nil
}

func (p *project) signPackages(ctx context.Context) (targets.Status, error) {
	logger := logctx.FromContext(ctx)

	if len(p.cfg.Sign.Command) == 0 {
		logger.Warn().Msg("signing is not configured, skipping")
		return targets.StatusSkipped, nil
	}

	key := ""
	if p.cfg.Sign.KeyEnv != "" {
		key = os.Getenv(p.cfg.Sign.KeyEnv)
		if key == "" {
			logger.Warn().
				Str("variable", p.cfg.Sign.KeyEnv).
				Msg("signing credential is not set, skipping")
			return targets.StatusSkipped, nil
		}
	}

	bundles, err := p.listBundles()
	if err != nil {
		return targets.StatusFailed, err
	}

	if p.cfg.Sign.ToolURL != "" {
		toolDir := filepath.Join(p.root, p.cfg.Sign.ToolDir)
		_, err := os.Stat(toolDir)
		if eris.Is(err, os.ErrNotExist) {
			err = download.FetchArchive(ctx, p.cfg.Sign.ToolURL, toolDir, p.cfg.Sign.ToolSha256, 1, nil)
		}
		if err != nil {
			return targets.StatusFailed, eris.Wrap(err, "failed to provision the signing tool")
		}
	}

	for _, bundle := range bundles {
		err = verifyBundle(bundle)
		if err != nil {
			return targets.StatusFailed, err
		}

		err = p.runPackageCommand(ctx, p.cfg.Sign.Command, bundle, key)
		if err != nil {
			return targets.StatusFailed, eris.Wrapf(err, "failed to sign %s", filepath.Base(bundle))
		}
	}

	return targets.StatusDone, nil
}

func (p *project) pushPackages(ctx context.Context) (targets.Status, error) {
	logger := logctx.FromContext(ctx)

	if len(p.cfg.Push.Command) == 0 {
		logger.Warn().Msg("no push feed configured, skipping")
		return targets.StatusSkipped, nil
	}

	key := ""
	if p.cfg.Push.KeyEnv != "" {
		key = os.Getenv(p.cfg.Push.KeyEnv)
		if key == "" {
			logger.Warn().
				Str("variable", p.cfg.Push.KeyEnv).
				Msg("feed credential is not set, skipping")
			return targets.StatusSkipped, nil
		}
	}

	bundles, err := p.listBundles()
	if err != nil {
		return targets.StatusFailed, err
	}

	for _, bundle := range bundles {
		err = p.runPackageCommand(ctx, p.cfg.Push.Command, bundle, key)
		if err != nil {
			return targets.StatusFailed, eris.Wrapf(err, "failed to push %s", filepath.Base(bundle))
		}
	}

	return targets.StatusDone, nil
}

// runPackageCommand expands the {package} and {key} placeholders and invokes
// the resulting command. The credential never reaches the logs.
func (p *project) runPackageCommand(ctx context.Context, argv []string, bundle, key string) error {
	expanded := make([]string, len(argv))
	for idx, arg := range argv {
		arg = strings.ReplaceAll(arg, "{package}", bundle)
		arg = strings.ReplaceAll(arg, "{key}", key)
		expanded[idx] = arg
	}

	opts := shellexec.Options{Dir: p.root}
	if key != "" {
		opts.Redact = []string{key}
	}

	return shellexec.Run(ctx, opts, expanded[0], expanded[1:]...)
}
