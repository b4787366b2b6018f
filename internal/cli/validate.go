package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegraph/internal/traverse"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Network string   `json:"network"`
	Nodes   int      `json:"nodes"`
	Rules   []string `json:"rules"`
	Edges   int      `json:"edges"`
	Cycles  []string `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <network-file>",
		Short: "Validate a network file",
		Long: `Parse and compile a CUE or YAML network file.

Reports syntax errors, schema violations and rule reference errors. A valid
network is materialized once to report its edge count and any cycles.

Exit codes:
  0 - Network valid
  1 - Network invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	net, err := loadNetwork(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiled network %s: %d node(s), %d rule(s)", net.Name, len(net.Nodes), len(net.RuleNames()))

	sess, err := openSession(opts, net, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeSession(sess, &err)
	formatter.TraceID = sess.manager.RunID()

	edges, err := sess.manager.Edges()
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to read edges", err)
	}
	cycles, err := traverse.Cycles(sess.manager.Store())
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to analyse cycles", err)
	}

	result := ValidationResult{
		Valid:   true,
		Network: net.Name,
		Nodes:   len(net.Nodes),
		Rules:   net.RuleNames(),
		Edges:   len(edges),
	}
	for _, c := range cycles {
		result.Cycles = append(result.Cycles, c.String())
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Network %s valid: %d node(s), %d rule(s), %d edge(s)\n",
		result.Network, result.Nodes, len(result.Rules), result.Edges)
	if len(result.Cycles) > 0 {
		fmt.Fprintf(w, "%d cycle(s):\n", len(result.Cycles))
		for _, c := range result.Cycles {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
	return nil
}
