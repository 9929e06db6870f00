package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookshelf/internal/sqlite"
)

// historian is a store that keeps every accepted write.
type historian interface {
	History(ctx context.Context, path string) ([]sqlite.Revision, error)
}

func newLogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show the commit history of the catalog (sqlite backend)",
		Long: "List accepted catalog writes, newest first. Only the sqlite backend\n" +
			"keeps history locally; use the repository history for github.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.close()

			h, ok := s.store.(historian)
			if !ok {
				return usagef("log is only available with the sqlite backend")
			}
			revs, err := h.History(cmd.Context(), s.catalog.Path())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				if revs == nil {
					revs = []sqlite.Revision{}
				}
				return writeJSON(out, revs)
			}
			for _, r := range revs {
				fmt.Fprintf(out, "%s  %s  %s\n", r.ID, r.CreatedAt.Format(time.DateTime), r.Message)
			}
			return nil
		},
	}
}
