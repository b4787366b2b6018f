package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
)

// EdgesResult is the materialized graph of a network file.
type EdgesResult struct {
	Network     string       `json:"network"`
	Nodes       []string     `json:"nodes"`
	Edges       []graph.Edge `json:"edges"`
	EdgeSetHash string       `json:"edge_set_hash"`
}

// NewEdgesCommand creates the edges command.
func NewEdgesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edges <network-file>",
		Short: "Materialize a network and print its edges",
		Long: `Create every node of a network file in declaration order and print the
derived edges, grouped by source node.

Examples:
  rulegraph edges mesh.cue
  rulegraph edges mesh.yaml --format json
  rulegraph edges mesh.yaml --store sqlite --db /tmp/mesh.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdges(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runEdges(opts *RootOptions, path string, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	net, err := loadNetwork(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

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

	result := EdgesResult{
		Network:     net.Name,
		Edges:       edges,
		EdgeSetHash: payload.EdgeSetHash(edges),
	}
	for _, n := range sess.manager.Store().Nodes() {
		result.Nodes = append(result.Nodes, n.ID())
	}
	if err := sess.manager.Err(); err != nil {
		return WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to list nodes", err)
	}
	formatter.VerboseLog("Materialized %d node(s), %d edge(s)", len(result.Nodes), len(edges))

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, e := range edges {
		fmt.Fprintln(formatter.Writer, e)
	}
	return nil
}
