package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nestq/internal/config"
	"github.com/roach88/nestq/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	DBPath string
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Show block store statistics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "store path (overrides store.path)")

	return cmd
}

// runStats needs no mapping, so it skips newEnvironment.
func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return pr.fail(ExitUsage, ErrCodeConfig, err.Error(), nil)
	}
	if opts.DBPath != "" {
		cfg.Store.Path = opts.DBPath
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return pr.fail(ExitUsage, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return pr.fail(ExitFailure, ErrCodeStore, err.Error(), nil)
	}

	if pr.JSON {
		return pr.Result(stats)
	}
	fmt.Fprintf(pr.Out, "Blocks:     %d\nDocs:       %d\nGeneration: %d\n",
		stats.Blocks, stats.Docs, stats.Generation)
	return nil
}
