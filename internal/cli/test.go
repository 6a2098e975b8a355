package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nestq/internal/harness"
	logpkg "github.com/roach88/nestq/internal/logger"
)

type TestOptions struct {
	*RootOptions
	Update    bool
	Filter    string // glob matched against the scenario file's base name
	GoldenDir string
}

// Outcome is the verdict on one scenario file.
type Outcome struct {
	Scenario string   `json:"scenario"`
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

// TestReport summarizes a test run.
type TestReport struct {
	Outcomes []Outcome `json:"outcomes"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
}

func (r *TestReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.OK {
		r.Passed++
	} else {
		r.Failed++
	}
}

func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>",
		Short: "Run query scenarios",
		Long: `Each scenario indexes its documents into a fresh in-memory store, runs
its query steps and checks the expected hits, scores and errors. If a
golden snapshot exists for the scenario, the run must reproduce it.

Exits 1 when any scenario fails and 2 when the scenarios cannot be found.

  nestq test ./scenarios
  nestq test ./scenarios --filter 'blog*'
  nestq test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Update, "update", false, "rewrite golden snapshots from this run")
	flags.StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")
	flags.StringVar(&opts.GoldenDir, "golden-dir", "", "snapshot directory (default <scenario dir>/golden)")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, path string) error {
	pr := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := harness.FindScenarios(path)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return pr.fail(ExitUsage, ErrCodeNotFound, "no scenarios at "+path, nil)
		}
		return pr.fail(ExitUsage, ErrCodeGeneric, err.Error(), nil)
	}
	if files, err = selectScenarios(files, opts.Filter); err != nil {
		return pr.fail(ExitUsage, ErrCodeInvalidInput, fmt.Sprintf("bad --filter: %v", err), nil)
	}

	var runOpts []harness.Option
	if opts.Verbose {
		if log, err := logpkg.NewLogger("dev", "debug"); err == nil {
			defer func() { _ = log.Sync() }()
			runOpts = append(runOpts, harness.WithLogger(log))
		}
	}

	report := TestReport{Outcomes: []Outcome{}}
	for _, file := range files {
		o := checkScenario(cmd, opts, file, runOpts)
		if !pr.JSON {
			printOutcome(pr, o)
		}
		report.add(o)
	}
	return finishTests(pr, report)
}

func selectScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	var kept []string
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if ok, _ := filepath.Match(pattern, name); ok {
			kept = append(kept, file)
		}
	}
	return kept, nil
}

func checkScenario(cmd *cobra.Command, opts *TestOptions, file string, runOpts []harness.Option) Outcome {
	failed := func(name, format string, args ...any) Outcome {
		return Outcome{Scenario: name, Problems: []string{fmt.Sprintf(format, args...)}}
	}

	sc, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), "load: %v", err)
	}
	res, err := harness.Run(cmd.Context(), sc, runOpts...)
	if err != nil {
		return failed(sc.Name, "run: %v", err)
	}
	snap, err := harness.Snapshot(sc.Name, res)
	if err != nil {
		return failed(sc.Name, "snapshot: %v", err)
	}

	problems := append([]string(nil), res.Errors...)
	golden := goldenFilePath(opts.GoldenDir, file, sc.Name)
	if opts.Update {
		if err := writeGolden(golden, snap); err != nil {
			return failed(sc.Name, "update golden: %v", err)
		}
	} else if p := compareGolden(golden, snap); p != "" {
		problems = append(problems, p)
	}
	return Outcome{Scenario: sc.Name, OK: len(problems) == 0, Problems: problems}
}

// compareGolden returns "" when the snapshot matches, or when there is no
// golden file to compare against.
func compareGolden(path string, snap []byte) string {
	want, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ""
	case err != nil:
		return fmt.Sprintf("read golden: %v", err)
	case !bytes.Equal(bytes.TrimSpace(want), snap):
		return "snapshot does not match golden file " + path + " (rerun with --update)"
	}
	return ""
}

// goldenFilePath places snapshots in <dir>/<name>.golden; dir defaults to
// golden/ beside the scenario file.
func goldenFilePath(dir, scenarioFile, name string) string {
	if dir == "" {
		dir = filepath.Join(filepath.Dir(scenarioFile), "golden")
	}
	return filepath.Join(dir, name+".golden")
}

func writeGolden(path string, snap []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(snap, '\n'), 0o644)
}

func printOutcome(pr *Printer, o Outcome) {
	mark := "✓"
	if !o.OK {
		mark = "✗"
	}
	fmt.Fprintf(pr.Out, "%s %s\n", mark, o.Scenario)
	for _, p := range o.Problems {
		fmt.Fprintf(pr.Out, "    %s\n", strings.ReplaceAll(p, "\n", "\n    "))
	}
}

func finishTests(pr *Printer, r TestReport) error {
	var fail error
	if r.Failed > 0 {
		fail = newFailure(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", r.Failed, len(r.Outcomes)))
	}

	if pr.JSON {
		env := Envelope{Status: "ok", Data: r}
		if fail != nil {
			env.Status = "error"
			env.Error = &ErrorBody{Code: "E_TEST_FAILED", Message: fail.Error()}
		}
		if err := pr.envelope(env); err != nil {
			return err
		}
		return fail
	}

	switch {
	case len(r.Outcomes) == 0:
		fmt.Fprintln(pr.Out, "No scenarios found.")
	case fail != nil:
		fmt.Fprintf(pr.Out, "\n%d passed, %d failed\n", r.Passed, r.Failed)
	default:
		fmt.Fprintf(pr.Out, "\nall %d scenario(s) passed\n", r.Passed)
	}
	return fail
}

