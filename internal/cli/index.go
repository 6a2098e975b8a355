package cli

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nestq/internal/engine"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	StoreOptions
}

// IndexOutput is the JSON payload of a successful index run.
type IndexOutput struct {
	Indexed int    `json:"indexed"`
	DB      string `json:"db"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index <docs.json>",
		Short: "Index documents into the block store",
		Long: `Flatten documents into blocks and write them to the store.

The input is a JSON array of {"_id": ..., "_source": {...}}. A document
whose _id is already indexed replaces the old block.

Examples:
  nestq index docs.json --mapping mapping.yaml --db nestq.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MappingPath, "mapping", "", "mapping file (overrides mapping.path)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "store path (overrides store.path)")

	return cmd
}

func runIndex(opts *IndexOptions, docsFile string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	env, err := newEnvironment(opts.RootOptions, opts.StoreOptions, "warn", pr)
	if err != nil {
		return err
	}
	defer env.Close()

	data, err := readInput(docsFile, cmd.InOrStdin())
	if err != nil {
		return inputFailure(pr, docsFile, err)
	}
	docs, err := engine.DecodeDocuments(bytes.NewReader(data))
	if err != nil {
		return pr.fail(ExitUsage, ErrCodeInvalidInput, err.Error(), nil)
	}

	if err := env.openStore(pr); err != nil {
		return err
	}

	n, err := env.indexer().IndexAll(cmd.Context(), docs)
	if err != nil {
		details := map[string]int{"indexed": n}
		if errors.Is(err, engine.ErrInvalidDocument) {
			return pr.fail(ExitUsage, ErrCodeInvalidInput, err.Error(), details)
		}
		return pr.fail(ExitFailure, ErrCodeStore, err.Error(), details)
	}
	pr.Debugf("Indexed %d document(s) from %s", n, docsFile)

	if pr.JSON {
		return pr.Result(IndexOutput{Indexed: n, DB: env.cfg.Store.Path})
	}
	fmt.Fprintf(pr.Out, "✓ Indexed %d document(s) into %s\n", n, env.cfg.Store.Path)
	return nil
}
