// Package pipeline assembles the build pipeline: it loads shipit.yml and
// registers every target in one place. There is no implicit target discovery;
// what Register adds is everything a run can reference.
package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ConfigName is the project file Discover searches for.
const ConfigName = "shipit.yml"

// Config mirrors shipit.yml.
type Config struct {
	Project string `yaml:"project"`
	Version string `yaml:"version"`

	// VersionFiles are patched by the patch-version target: every occurrence
	// of Match is replaced with the configured version.
	VersionFiles []VersionFile `yaml:"versionFiles,omitempty"`

	// Scripts holds the shell snippets behind the restore, build, test and
	// clean targets. A target without a script becomes a pure aggregation
	// node.
	Scripts map[string]string `yaml:"scripts,omitempty"`

	Packages PackagesConfig `yaml:"packages"`
	Sign     SignConfig     `yaml:"sign,omitempty"`
	Push     PushConfig     `yaml:"push,omitempty"`
}

// VersionFile names a file and the placeholder to replace in it.
type VersionFile struct {
	Path  string `yaml:"path"`
	Match string `yaml:"match"`
}

// PackagesConfig controls the packages target.
type PackagesConfig struct {
	// Include lists globstar patterns (relative to the project root) of the
	// build artifacts that go into the bundle.
	Include []string `yaml:"include"`
	// Out is the directory receiving the .spk bundle.
	Out string `yaml:"out"`
}

// SignConfig controls the sign-packages target. The signing tool is fetched
// on demand from ToolURL and invoked once per bundle.
type SignConfig struct {
	ToolURL    string `yaml:"toolUrl,omitempty"`
	ToolSha256 string `yaml:"toolSha256,omitempty"`
	ToolDir    string `yaml:"toolDir,omitempty"`
	// Command is the signing invocation; the {package} placeholder is
	// replaced with the bundle path, {key} with the credential.
	Command []string `yaml:"command,omitempty"`
	// KeyEnv names the environment variable holding the signing credential.
	// If the variable is empty the target is skipped, not failed.
	KeyEnv string `yaml:"keyEnv,omitempty"`
}

// PushConfig controls the push target. Command follows the same placeholder
// rules as SignConfig.Command.
type PushConfig struct {
	Command []string `yaml:"command,omitempty"`
	KeyEnv  string   `yaml:"keyEnv,omitempty"`
}

// Load reads and validates the given shipit.yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "could not open %s", path)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	if cfg.Project == "" {
		return nil, eris.Errorf("%s doesn't set a project name", path)
	}

	if cfg.Version == "" {
		return nil, eris.Errorf("%s doesn't set a version", path)
	}

	if cfg.Packages.Out == "" {
		cfg.Packages.Out = "dist"
	}

	if cfg.Sign.ToolDir == "" {
		cfg.Sign.ToolDir = filepath.Join(".tools", "signclient")
	}

	return &cfg, nil
}

// Discover walks up from startDir until it finds a shipit.yml and returns its
// path. The directory containing it is the project root.
func Discover(startDir string) (string, error) {
	path, err := filepath.Abs(startDir)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", startDir)
	}

	for {
		cfgPath := filepath.Join(path, ConfigName)
		_, err := os.Stat(cfgPath)
		if err == nil {
			return cfgPath, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", cfgPath)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", eris.Errorf("no %s found above %s", ConfigName, startDir)
		}

		path = parent
	}
}
