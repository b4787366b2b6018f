package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/telemetry"
	"github.com/roach88/rulegraph/internal/traverse"
)

// BFSOptions holds flags for the bfs command.
type BFSOptions struct {
	*RootOptions
	From     string
	MaxDepth int
	Barriers []string
	StopAt   string
}

// BFSStep is one visited node.
type BFSStep struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

// BFSResult holds the traversal output.
type BFSResult struct {
	Network string    `json:"network"`
	From    string    `json:"from"`
	Visited []BFSStep `json:"visited"`
}

// NewBFSCommand creates the bfs command.
func NewBFSCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BFSOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bfs <network-file>",
		Short: "Breadth-first search over a materialized network",
		Long: `Materialize a network file and traverse it breadth-first along outgoing
edges, printing each visited node with its depth.

Examples:
  rulegraph bfs mesh.cue --from web
  rulegraph bfs mesh.cue --from web --max-depth 1
  rulegraph bfs mesh.cue --from web --barrier api --stop-at audit`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBFS(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "start node id (required)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", -1, "do not expand nodes at this depth or deeper (-1: unlimited)")
	cmd.Flags().StringArrayVar(&opts.Barriers, "barrier", nil, "node id whose neighbours are not expanded (repeatable)")
	cmd.Flags().StringVar(&opts.StopAt, "stop-at", "", "end the traversal after visiting this node id")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runBFS(opts *BFSOptions, path string, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	net, err := loadNetwork(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	sess, err := openSession(opts.RootOptions, net, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeSession(sess, &err)
	formatter.TraceID = sess.manager.RunID()

	steps, err := traverse.BFSDepths(sess.manager.Store(), opts.From, opts.traversalOptions(sess.recorder)...)
	if err != nil {
		if graph.IsNotFound(err) {
			_ = formatter.Error(ErrCodeUnknownNode, fmt.Sprintf("start node %q not in network %s", opts.From, net.Name), nil)
			return WrapExitError(ExitCommandError, ErrCodeUnknownNode, err)
		}
		return WrapExitError(ExitCommandError, ErrCodeStoreFailed+": traversal failed", err)
	}

	result := BFSResult{Network: net.Name, From: opts.From, Visited: make([]BFSStep, len(steps))}
	for i, s := range steps {
		result.Visited[i] = BFSStep{ID: s.Node.ID(), Depth: s.Depth}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, s := range result.Visited {
		fmt.Fprintf(formatter.Writer, "%d %s\n", s.Depth, s.ID)
	}
	return nil
}

func (o *BFSOptions) traversalOptions(rec *telemetry.Recorder) []traverse.Option[payload.Object] {
	topts := []traverse.Option[payload.Object]{
		traverse.WithMaxDepth[payload.Object](o.MaxDepth),
		traverse.WithRecorder[payload.Object](rec),
	}
	if len(o.Barriers) > 0 {
		topts = append(topts, traverse.WithExpand[payload.Object](func(n *graph.Node[payload.Object], _ int) bool {
			return !slices.Contains(o.Barriers, n.ID())
		}))
	}
	if o.StopAt != "" {
		topts = append(topts, traverse.WithVisit[payload.Object](func(n *graph.Node[payload.Object], _ int) error {
			if n.ID() == o.StopAt {
				return traverse.ErrStop
			}
			return nil
		}))
	}
	return topts
}
