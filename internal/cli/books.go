package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the books in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			books := s.engine.Books()
			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				if books == nil {
					books = []types.Book{}
				}
				return writeJSON(out, books)
			}
			if len(books) == 0 {
				fmt.Fprintln(out, "No books in the catalog.")
				return nil
			}
			for i, b := range books {
				fmt.Fprintf(out, "%d  %s\n", i, formatBook(b))
			}
			return nil
		},
	}
}

// formatBook renders a book as "name /slug/ [type] repo". An absent type
// shows as its default.
func formatBook(b types.Book) string {
	b = b.WithDefaults()
	return fmt.Sprintf("%s /%s/ [%s] %s", b.Name, b.Slug, b.Type, b.Repo)
}

func newAddCmd(a *app) *cobra.Command {
	var book types.Book
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book and commit the catalog",
		Long: "Append a book to the catalog and commit catalog.yml. The slug defaults\n" +
			"to one derived from --name; type, branch and path default to\n" +
			types.DefaultType + ", " + types.DefaultBranch + " and " + types.DefaultPath + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(book.Slug) == "" {
				book.Slug = types.Slugify(book.Name)
			}
			s, err := a.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			added, err := s.engine.AddBook(cmd.Context(), book)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, added)
			}
			fmt.Fprintf(out, "Added %s\n", formatBook(added))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&book.Name, "name", "", "display name (required)")
	f.StringVar(&book.Slug, "slug", "", "URL slug (default: derived from name)")
	f.StringVar(&book.Repo, "repo", "", "source repository, owner/name (required)")
	f.StringVar(&book.Type, "type", "", "book type (default: "+types.DefaultType+")")
	f.StringVar(&book.Branch, "branch", "", "source branch (default: "+types.DefaultBranch+")")
	f.StringVar(&book.Path, "path", "", "book root in the source repository (default: "+types.DefaultPath+")")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <index|slug>",
		Short: "Remove a book and commit the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			index, err := resolveIndex(s.engine.IndexOf, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !yes {
				books := s.engine.Books()
				if index >= 0 && index < len(books) {
					ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("Remove %q from the catalog?", books[index].Name))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "Aborted.")
						return nil
					}
				}
			}

			removed, err := s.engine.RemoveBook(cmd.Context(), index)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(out, removed)
			}
			fmt.Fprintf(out, "Removed %s\n", formatBook(removed))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// resolveIndex looks arg up as a slug first, since all-digit slugs are
// valid, and otherwise reads it as a zero-based index.
func resolveIndex(indexOf func(string) int, arg string) (int, error) {
	if i := indexOf(arg); i >= 0 {
		return i, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return n, nil
	}
	return 0, &types.ValidationError{Rule: types.RuleSlugUnknown, Field: "slug", Value: arg}
}

// confirm asks a yes/no question and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
