package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookshelf/internal/config"
)

// maskedValue replaces secrets in config output.
const maskedValue = "********"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write shelf configuration",
		Long: "Keys: " + strings.Join(config.Keys(), ", ") + ".\n" +
			"Reads include SHELF_* environment overrides; writes go to config.yaml.",
	}
	cmd.AddCommand(newConfigGetCmd(a), newConfigSetCmd(a), newConfigListCmd(a))
	return cmd
}

func newConfigGetCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, _, err := a.conf.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), display(args[0], value, reveal))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secret values in clear text")
	return cmd
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value in config.yaml",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.conf.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], display(args[0], args[1], false))
			return nil
		},
	}
}

func newConfigListCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			values := make(map[string]string)
			for _, key := range config.Keys() {
				value, _, err := a.conf.Get(key)
				if err != nil {
					return err
				}
				values[key] = display(key, value, reveal)
			}
			if a.flags.jsonMode {
				return writeJSON(out, values)
			}
			for _, key := range config.Keys() {
				fmt.Fprintf(out, "%s = %s\n", key, values[key])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secret values in clear text")
	return cmd
}

// display masks non-empty secret values unless reveal is set.
func display(key, value string, reveal bool) string {
	if config.SecretKeys[key] && value != "" && !reveal {
		return maskedValue
	}
	return value
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
