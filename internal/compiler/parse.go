package compiler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

const schemaFilename = "schema.cue"

// CompileError is a parse error with the position it was found at, when
// the source format reports one.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Line    int
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseCUE decodes a CUE network file. The file is unified with the
// embedded #Network schema before decoding, so type errors are reported
// with CUE positions.
func ParseCUE(src []byte, filename string) (*NetworkSpec, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Network")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var spec NetworkSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, &CompileError{Field: "network", Message: err.Error()}
	}
	return &spec, nil
}

// ParseYAML decodes a YAML network file. Unknown fields are errors.
func ParseYAML(src []byte) (*NetworkSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var spec NetworkSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, formatYAMLError(err)
	}
	return &spec, nil
}

// LoadFile reads and decodes a network file, choosing the format from the
// extension (.cue, .yaml or .yml).
func LoadFile(path string) (*NetworkSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(src, path)
	case ".yaml", ".yml":
		spec, err := ParseYAML(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return spec, nil
	default:
		return nil, fmt.Errorf("unsupported network file extension %q (want .cue, .yaml or .yml)", filepath.Ext(path))
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info, preferring a position in the
	// user's file over one in the embedded schema.
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) == 0 {
		return err
	}
	pos := positions[0]
	for _, p := range positions {
		if p.Filename() != schemaFilename {
			pos = p
			break
		}
	}
	return &CompileError{
		Field:   "cue",
		Message: first.Error(),
		Pos:     pos,
	}
}

// formatYAMLError maps a yaml.v3 error to a CompileError. yaml.TypeError
// carries one message per offending field; the first is reported.
func formatYAMLError(err error) error {
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		line := 0
		_, _ = fmt.Sscanf(te.Errors[0], "line %d:", &line)
		return &CompileError{Field: "yaml", Message: te.Errors[0], Line: line}
	}
	return &CompileError{Field: "yaml", Message: err.Error()}
}
