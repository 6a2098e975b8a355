package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nestq/internal/ir"
	"github.com/roach88/nestq/internal/queryir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	StoreOptions
}

// CompileOutput is the JSON payload of a successful compile.
type CompileOutput struct {
	InvocationID string          `json:"invocation_id"`
	Explain      string          `json:"explain"`
	Query        json.RawMessage `json:"query,omitempty"`
	Named        []string        `json:"named,omitempty"`
	Size         int             `json:"size,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a query to its block-join plan",
		Long: `Compile a query document against a mapping and print the plan.

Text output is the explain tree; --format json prints the canonical IR.
Use "-" to read the query from stdin.

Examples:
  nestq compile query.json --mapping mapping.yaml
  nestq compile query.cue --mapping mapping.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MappingPath, "mapping", "", "mapping file (overrides mapping.path)")

	return cmd
}

func runCompile(opts *CompileOptions, queryFile string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

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

	out := CompileOutput{
		InvocationID: pq.InvocationID,
		Explain:      queryir.Explain(pq.Query),
		Named:        pq.NamedOrder,
		Size:         pq.Size,
	}
	if pq.Query != nil {
		d, err := queryir.Describe(pq.Query)
		if err == nil {
			out.Query, err = ir.MarshalCanonical(d)
		}
		if err != nil {
			return pr.fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("render IR: %v", err), nil)
		}
	}

	if pr.JSON {
		return pr.Result(out)
	}

	w := pr.Out
	if pq.Query == nil {
		fmt.Fprintln(w, "(empty query: matches nothing)")
		return nil
	}
	fmt.Fprintln(w, out.Explain)
	if len(out.Named) > 0 {
		fmt.Fprintf(w, "\nNamed queries: %s\n", strings.Join(out.Named, ", "))
	}
	return nil
}
