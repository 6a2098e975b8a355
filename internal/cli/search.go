package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	StoreOptions
	Size   int
	Source bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query-file>",
		Short: "Compile and run a query against the block store",
		Long: `Compile a query and return the matching root documents, best first.

--size overrides the request's size; without either, 10 hits are returned.

Examples:
  nestq search query.json --mapping mapping.yaml --db nestq.db
  nestq search query.json --size 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MappingPath, "mapping", "", "mapping file (overrides mapping.path)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "store path (overrides store.path)")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "number of hits (overrides the request)")
	cmd.Flags().BoolVar(&opts.Source, "source", false, "print _source in text output")

	return cmd
}

func runSearch(opts *SearchOptions, queryFile string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Size < 0 {
		return pr.fail(ExitUsage, ErrCodeInvalidInput, "--size must not be negative", nil)
	}

	env, err := newEnvironment(opts.RootOptions, opts.StoreOptions, "warn", pr)
	if err != nil {
		return err
	}
	defer env.Close()

	src, err := readInput(queryFile, cmd.InOrStdin())
	if err != nil {
		return inputFailure(pr, queryFile, err)
	}
	pq, err := env.parser.Parse(src, queryFile)
	if err != nil {
		return pr.compileFailure(err)
	}

	if err := env.openStore(pr); err != nil {
		return err
	}

	res, err := env.executor().Search(cmd.Context(), pq, opts.Size)
	if err != nil {
		return pr.fail(ExitFailure, ErrCodeSearch, err.Error(), map[string]string{"invocation_id": pq.InvocationID})
	}

	if pr.JSON {
		return pr.Result(res)
	}

	w := pr.Out
	fmt.Fprintf(w, "%d hit(s), showing %d\n", res.Total, len(res.Hits))
	for _, h := range res.Hits {
		line := fmt.Sprintf("  %-20s %s", h.ID, strconv.FormatFloat(h.Score, 'g', 6, 64))
		if len(h.MatchedQueries) > 0 {
			line += "  [" + strings.Join(h.MatchedQueries, ", ") + "]"
		}
		fmt.Fprintln(w, line)
		if opts.Source {
			fmt.Fprintf(w, "    %s\n", h.Source)
		}
	}
	return nil
}
