package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Store   string // "memory" | "sqlite"
	DB      string // SQLite path when Store is "sqlite"

	Telemetry bool // write spans and metrics to stderr
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidStores defines the allowed graph store backends.
var ValidStores = []string{"memory", "sqlite"}

// NewRootCommand creates the root command for the rulegraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rulegraph",
		Short: "rulegraph - rule-derived directed graphs",
		Long: `Build directed graphs whose edges are derived from per-node rules.

An edge a -> b exists when a holds a rule that can initiate toward b and b
holds a rule that accepts a. Networks are declared in CUE or YAML files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateRootOptions(opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "memory", "graph store backend (memory|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", ":memory:", "SQLite database path for --store sqlite")
	cmd.PersistentFlags().BoolVar(&opts.Telemetry, "telemetry", false, "write OpenTelemetry spans and metrics as JSON to stderr")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewEdgesCommand(opts))
	cmd.AddCommand(NewBFSCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func validateRootOptions(opts *RootOptions) error {
	if !slices.Contains(ValidFormats, opts.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if opts.Store != "" && !slices.Contains(ValidStores, opts.Store) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid store %q: must be one of %v", opts.Store, ValidStores))
	}
	return nil
}

// newLogger builds the logger handed to the manager. Diagnostics go to w,
// never to the command's output stream.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
