package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bookshelf/internal/config"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend string         `yaml:"backend"`
	GitHub  *githubSection `yaml:"github,omitempty"`
	DataDir string         `yaml:"data_dir,omitempty"`
}

type githubSection struct {
	Owner  string `yaml:"owner,omitempty"`
	Repo   string `yaml:"repo,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

type initOptions struct {
	backend string
	owner   string
	repo    string
	branch  string
}

func newInitCmd(a *app) *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config.yaml",
		Long: "Create the configuration directory and a config.yaml with the given\n" +
			"backend settings. An existing config.yaml is left untouched. With the\n" +
			"sqlite backend the database is created as well.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", types.BackendGitHub, "storage backend: github or sqlite")
	f.StringVar(&opts.owner, "owner", "", "GitHub owner of the catalog repository")
	f.StringVar(&opts.repo, "repo", "", "GitHub catalog repository name")
	f.StringVar(&opts.branch, "branch", "", "branch holding catalog.yml (default: repository default)")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, opts initOptions) error {
	if opts.backend != types.BackendGitHub && opts.backend != types.BackendSQLite {
		return usagef("unknown backend %q (valid: %s, %s)", opts.backend, types.BackendGitHub, types.BackendSQLite)
	}

	out := cmd.OutOrStdout()
	path := a.conf.Path()
	written, err := writeConfigIfMissing(a.conf.Dir(), path, opts, a.flags.dataDir)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if !written {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
		return nil
	}

	conf, err := config.Open(a.conf.Dir())
	if err != nil {
		return err
	}
	a.conf = conf

	if opts.backend == types.BackendSQLite {
		_, closeFn, err := a.openStore()
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		if err := closeFn(); err != nil {
			return fmt.Errorf("finalize storage: %w", err)
		}
	}

	fmt.Fprintf(out, "Shelf initialized at %s\n", path)
	return nil
}

// writeConfigIfMissing creates config.yaml unless it already exists and
// reports whether it wrote the file.
func writeConfigIfMissing(dir, path string, opts initOptions, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	cfg := configFile{Backend: opts.backend}
	switch opts.backend {
	case types.BackendGitHub:
		cfg.GitHub = &githubSection{Owner: opts.owner, Repo: opts.repo, Branch: opts.branch}
	case types.BackendSQLite:
		cfg.DataDir = dataDir
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	return true, os.WriteFile(path, data, 0o600)
}
