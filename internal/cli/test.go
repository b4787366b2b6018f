package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rulegraph/internal/harness"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Parallel int    // scenarios run concurrently (memory store only)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	note string
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>...",
		Short: "Run conformance scenarios",
		Long: `Run harness scenarios and compare their final edges against golden files.

Arguments are scenario YAML files or directories searched recursively. The
golden file for dir/name.yaml is dir/golden/name.golden; scenarios without a
golden file are checked by their assertions only.

With --parallel n, up to n scenarios run at once. Results are reported in
file order. The sqlite store always runs scenarios one at a time because they
share one database.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  rulegraph test ./scenarios
  rulegraph test ./scenarios --filter "mesh-*"
  rulegraph test ./scenarios --update
  rulegraph test ./scenarios --parallel 8
  rulegraph test ./scenarios --store sqlite --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of scenarios to run concurrently")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	if opts.Parallel < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--parallel must be at least 1, got %d", opts.Parallel))
	}

	var scenarioFiles []string
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: scenario path not found: %s", ErrCodeNotFound, p))
		}
		files, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		scenarioFiles = append(scenarioFiles, files...)
	}

	formatter := newFormatter(opts.RootOptions, cmd)

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	runner, err := newScenarioRunner(opts, cmd)
	if err != nil {
		return err
	}
	defer runner.Close()

	result := TestResult{
		Scenarios: runner.runAll(scenarioFiles),
		Total:     len(scenarioFiles),
	}

	for _, scenResult := range result.Scenarios {
		if opts.Format != "json" {
			printScenarioResult(cmd.OutOrStdout(), scenResult)
		}
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles returns path itself if it is a file, or every YAML file
// under it if it is a directory.
func findScenarioFiles(path string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})

	return files, err
}

// scenarioRunner runs scenarios against the store selected by --store.
type scenarioRunner struct {
	opts     *TestOptions
	logger   *slog.Logger
	db       *store.DB
	parallel int
}

func newScenarioRunner(opts *TestOptions, cmd *cobra.Command) (*scenarioRunner, error) {
	r := &scenarioRunner{
		opts:     opts,
		logger:   newLogger(opts.RootOptions, cmd.ErrOrStderr()),
		parallel: opts.Parallel,
	}

	if opts.Store == "sqlite" {
		db, err := store.Open(opts.DB)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to open database", err)
		}
		r.db = db
		r.parallel = 1
	}
	return r, nil
}

func (r *scenarioRunner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// runAll runs every scenario file and returns the results in input order.
// Scenario failures are results, not errors, so no goroutine fails the group.
func (r *scenarioRunner) runAll(files []string) []ScenarioResult {
	results := make([]ScenarioResult, len(files))

	var g errgroup.Group
	g.SetLimit(r.parallel)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			results[i] = r.run(file)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *scenarioRunner) fail(name string, errs ...string) ScenarioResult {
	return ScenarioResult{Name: name, Pass: false, Errors: errs}
}

func (r *scenarioRunner) pass(name, note string) ScenarioResult {
	return ScenarioResult{Name: name, Pass: true, note: note}
}

func printScenarioResult(w io.Writer, res ScenarioResult) {
	if res.Pass {
		fmt.Fprintf(w, "✓ %s%s\n", res.Name, res.note)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", res.Name)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// run executes a single scenario and returns the result.
func (r *scenarioRunner) run(scenarioFile string) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return r.fail(filepath.Base(scenarioFile), fmt.Sprintf("failed to load scenario: %v", err))
	}

	runOpts := []harness.Option{harness.WithLogger(r.logger)}
	if r.db != nil {
		gs, err := store.NewGraphStore[payload.Object](r.db)
		if err != nil {
			return r.fail(scenario.Name, fmt.Sprintf("failed to prepare graph store: %v", err))
		}
		runOpts = append(runOpts, harness.WithStore(gs))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return r.fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	snapshot, err := harness.MarshalSnapshot(scenario.Name, result)
	if err != nil {
		return r.fail(scenario.Name, fmt.Sprintf("failed to marshal snapshot: %v", err))
	}
	goldenPath := goldenFilePath(scenarioFile)

	if r.opts.Update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			return r.fail(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		if !result.Pass {
			return r.fail(scenario.Name, result.Errors...)
		}
		return r.pass(scenario.Name, " (golden updated)")
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// No golden file - use assertion-based validation only
	case err != nil:
		return r.fail(scenario.Name, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(golden, snapshot):
		return r.fail(scenario.Name, withGoldenMismatch(result.Errors)...)
	}

	if !result.Pass {
		return r.fail(scenario.Name, result.Errors...)
	}
	return r.pass(scenario.Name, "")
}

// withGoldenMismatch returns errs plus the golden mismatch message. errs
// belongs to the harness result and is not modified.
func withGoldenMismatch(errs []string) []string {
	return append(slices.Clone(errs),
		"edges do not match golden file (run with --update to regenerate)")
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// writeGoldenFile writes a snapshot, creating the golden directory.
func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return formatter.Success(result)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := formatter.Failure(result, "E_TEST_FAILED", msg); err != nil {
		return err
	}
	// Test failures = exit code 1
	return NewExitError(ExitFailure, msg)
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
