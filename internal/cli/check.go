package cli

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookshelf/internal/codec"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// checkReport is the result of inspecting the stored catalog document.
type checkReport struct {
	Path      string               `json:"path"`
	Revision  string               `json:"revision,omitempty"`
	Exists    bool                 `json:"exists"`
	Books     int                  `json:"books"`
	Canonical bool                 `json:"canonical"`
	Issues    []*types.DecodeError `json:"issues"`
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report syntax problems in the stored catalog",
		Long: "Fetch catalog.yml and list every line the decoder skipped. The command\n" +
			"fails when any line was skipped. A document that decodes cleanly but\n" +
			"differs from what shelf would write is reported as non-canonical.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.close()

			report := checkReport{Path: s.catalog.Path(), Issues: []*types.DecodeError{}}
			doc, err := s.store.Get(cmd.Context(), report.Path)
			switch {
			case errors.Is(err, types.ErrNotFound):
			case err != nil:
				return err
			default:
				catalog, issues := codec.Decode(doc.Content)
				report.Exists = true
				report.Revision = doc.Revision
				report.Books = catalog.Len()
				report.Canonical = bytes.Equal(codec.Encode(catalog), doc.Content)
				if issues != nil {
					report.Issues = issues
				}
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}
			if len(report.Issues) > 0 {
				return fmt.Errorf("%s: %d line(s) skipped: %w", report.Path, len(report.Issues), report.Issues[0])
			}
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, r checkReport) {
	out := cmd.OutOrStdout()
	if !r.Exists {
		fmt.Fprintf(out, "%s does not exist yet\n", r.Path)
		return
	}
	fmt.Fprintf(out, "%s at %s: %d book(s)\n", r.Path, r.Revision, r.Books)
	for _, issue := range r.Issues {
		fmt.Fprintf(out, "  %s\n", issue)
	}
	if !r.Canonical {
		fmt.Fprintln(out, "  not in canonical form; the next commit will rewrite it")
	}
}
