package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/roach88/rulegraph/internal/compiler"
	"github.com/roach88/rulegraph/internal/engine"
	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
	"github.com/roach88/rulegraph/internal/store"
	"github.com/roach88/rulegraph/internal/telemetry"
)

// LoadError represents an error that occurred while loading a network file.
type LoadError struct {
	Code    string
	Message string
	Line    int

	// Validation holds the individual failures when Code is
	// ErrCodeBuildFailed.
	Validation compiler.ValidationErrors
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// exitCode maps a load failure to a process exit code: problems with the
// file's content are failures, problems reaching it are command errors.
func (e *LoadError) exitCode() int {
	switch e.Code {
	case ErrCodeParseFailed, ErrCodeBuildFailed:
		return ExitFailure
	default:
		return ExitCommandError
	}
}

// loadNetwork parses and compiles a network file.
func loadNetwork(path string) (*compiler.Network, error) {
	spec, err := compiler.LoadFile(path)
	if err != nil {
		var cerr *compiler.CompileError
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("network file not found: %s", path)}
		case errors.As(err, &cerr):
			line := cerr.Line
			if cerr.Pos.IsValid() {
				line = cerr.Pos.Line()
			}
			return nil, &LoadError{Code: ErrCodeParseFailed, Message: cerr.Message, Line: line}
		default:
			return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
		}
	}

	net, err := compiler.Build(spec)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: verrs[0].Error(), Validation: verrs}
		}
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}
	return net, nil
}

// session is a manager over the store selected by --store, plus whatever
// must be released when the command ends.
type session struct {
	manager  *engine.Manager[payload.Object]
	recorder *telemetry.Recorder
	closers  []func() error
}

func (s *session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// openSession creates a manager backed by the configured store and applies
// net to it. With --telemetry, spans and metrics go to diag.
func openSession(opts *RootOptions, net *compiler.Network, logger *slog.Logger, diag io.Writer) (*session, error) {
	s := &session{}

	var backing graph.Store[payload.Object]
	switch opts.Store {
	case "", "memory":
		backing = graph.NewMemStore[payload.Object]()
	case "sqlite":
		db, err := store.Open(opts.DB)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to open database", err)
		}
		s.closers = append(s.closers, db.Close)
		gs, err := store.NewGraphStore[payload.Object](db)
		if err != nil {
			_ = s.Close()
			return nil, WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to prepare graph store", err)
		}
		s.closers = append(s.closers, gs.Err)
		backing = gs
		logger.Debug("using sqlite graph store", "path", opts.DB)
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid store %q", opts.Store))
	}

	rec, err := newRecorder(opts, diag, s)
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
		rec = telemetry.Noop()
	}
	s.recorder = rec

	s.manager = engine.New(
		engine.WithStore[payload.Object](backing),
		engine.WithLogger[payload.Object](logger),
		engine.WithTelemetry[payload.Object](rec),
	)

	if err := net.Apply(s.manager); err != nil {
		_ = s.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeStoreFailed+": failed to build graph", err)
	}
	return s, nil
}

// closeSession releases s. A failure while closing, such as an error the
// sqlite store recorded, becomes the command's error unless it already has
// one.
func closeSession(s *session, err *error) {
	if cerr := s.Close(); cerr != nil && *err == nil {
		*err = WrapExitError(ExitCommandError, ErrCodeStoreFailed+": graph store failed", cerr)
	}
}

// newRecorder returns the stdout recorder when --telemetry is set, the
// global one otherwise. The stdout recorder is flushed when s closes.
func newRecorder(opts *RootOptions, diag io.Writer, s *session) (*telemetry.Recorder, error) {
	if !opts.Telemetry {
		return telemetry.Global()
	}
	rec, shutdown, err := telemetry.NewStdout(diag)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error {
		return shutdown(context.Background())
	})
	return rec, nil
}

// reportLoadError prints a load failure and returns the matching ExitError.
func reportLoadError(f *OutputFormatter, err error) error {
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}

	var details any
	if len(lerr.Validation) > 0 {
		details = lerr.Validation
	}

	if f.Format == "json" {
		_ = f.Error(lerr.Code, lerr.Message, details)
		return NewExitError(lerr.exitCode(), lerr.Error())
	}

	fmt.Fprintln(f.Writer, "✗ Load failed")
	if len(lerr.Validation) > 0 {
		for _, v := range lerr.Validation {
			fmt.Fprintf(f.Writer, "  %s\n", v.Error())
		}
	} else {
		if lerr.Line > 0 {
			fmt.Fprintf(f.Writer, "line %d\n", lerr.Line)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n", lerr.Code, lerr.Message)
	}
	return NewExitError(lerr.exitCode(), lerr.Error())
}
