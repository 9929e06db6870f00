// Package cli implements the shelf command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookshelf/internal/config"
	"github.com/mesh-intelligence/bookshelf/internal/logs"
	"github.com/mesh-intelligence/bookshelf/internal/paths"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// dotEnvFile is loaded from the working directory before config is read.
const dotEnvFile = ".env"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
	logFile   string
}

// app is the state shared by subcommands once the root pre-run completed.
type app struct {
	flags    rootFlags
	conf     *config.Store
	logger   *slog.Logger
	closeLog func() error
}

// NewRootCmd creates the top-level "shelf" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: logs.Discard(), closeLog: func() error { return nil }}

	root := &cobra.Command{
		Use:   "shelf",
		Short: "Manage an mdBook catalog stored in a GitHub repository",
		Long: "Shelf keeps the list of published books in catalog.yml and commits\n" +
			"every change back to the catalog repository.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory for the sqlite backend")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFile, "log-file", "", "append JSON logs to this file")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newRemoveCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newLogCmd(a))

	return root
}

// Execute runs the root command under ctx and returns the process exit code.
func Execute(ctx context.Context) int {
	return run(ctx, NewRootCmd(), os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, stderr io.Writer) int {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(stderr, "Error: %s\n", err)
	return exitCode(err)
}

// exitCode maps an error to exitUserError for problems the user can fix
// by changing input or configuration and exitSysError for everything else.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &usage),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, config.ErrUnknownKey),
		isConfigError(err):
		return exitUserError
	default:
		return exitSysError
	}
}

func isConfigError(err error) bool {
	for _, target := range []error{
		types.ErrBackendEmpty, types.ErrBackendUnknown,
		types.ErrOwnerEmpty, types.ErrRepoEmpty, types.ErrTokenEmpty,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// usageError reports a bad argument or flag value.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// setup loads .env, opens the config store and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return err
	}

	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	conf, err := config.Open(dir)
	if err != nil {
		return err
	}
	a.conf = conf

	level := a.flags.logLevel
	if level == "" {
		level, _, _ = conf.Get(config.KeyLogLevel)
	}
	if _, err := logs.ParseLevel(level); err != nil {
		return &usageError{msg: err.Error()}
	}
	file := a.flags.logFile
	if file == "" {
		file, _, _ = conf.Get(config.KeyLogFile)
	}
	logger, closeLog, err := logs.New(logs.Options{
		Level:    level,
		Terminal: cmd.ErrOrStderr(),
		File:     file,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}
