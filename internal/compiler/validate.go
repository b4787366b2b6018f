package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
)

// Validation error codes (E100-E199)
const (
	ErrNetworkNameEmpty = "E101" // network name is required
	ErrNodeIDEmpty      = "E102" // node id is required
	ErrDuplicateNodeID  = "E103" // node id declared twice
	ErrUnknownRule      = "E104" // rule reference names no declared rule
	ErrInvalidDirection = "E105" // direction is not out, in or both
	ErrInvalidPredicate = "E106" // predicate missing or not exactly one form
	ErrSelfInFilter     = "E107" // target filter reads the initiating payload
	ErrInvalidFieldTest = "E108" // field test without path or with several checks
	ErrFloatForbidden   = "E109" // payloads are restricted to non-float values
)

// ValidationError represents a network validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every error found in one network.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a decoded network. Returns all errors found (does not
// fail-fast), in declaration order with named rules first.
func Validate(spec *NetworkSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "network name is required",
			Code:    ErrNetworkNameEmpty,
		})
	}

	names := make([]string, 0, len(spec.Rules))
	for name := range spec.Rules {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rs := spec.Rules[name]
		errs = append(errs, validateRule(&rs, "rules."+name)...)
	}

	seen := make(map[string]bool)
	for i, n := range spec.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)

		if n.ID == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: "node id is required",
				Code:    ErrNodeIDEmpty,
			})
		} else if seen[n.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate node id: %q", n.ID),
				Code:    ErrDuplicateNodeID,
			})
		}
		seen[n.ID] = true

		if _, err := payload.ObjectFromMap(n.Data); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".data",
				Message: err.Error(),
				Code:    ErrFloatForbidden,
			})
		}

		for j, ref := range n.Rules {
			refField := fmt.Sprintf("%s.rules[%d]", field, j)
			errs = append(errs, validateRef(spec, ref, refField)...)
		}
	}

	return errs
}

// ValidateRefs checks rule references against the named rules of spec.
func ValidateRefs(spec *NetworkSpec, refs []RuleRef, field string) []ValidationError {
	var errs []ValidationError
	for j, ref := range refs {
		errs = append(errs, validateRef(spec, ref, fmt.Sprintf("%s[%d]", field, j))...)
	}
	return errs
}

func validateRef(spec *NetworkSpec, ref RuleRef, field string) []ValidationError {
	if ref.Inline != nil {
		return validateRule(ref.Inline, field)
	}
	if _, ok := spec.Rules[ref.Name]; !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("unknown rule: %q", ref.Name),
			Code:    ErrUnknownRule,
		}}
	}
	return nil
}

func validateRule(rs *RuleSpec, field string) []ValidationError {
	var errs []ValidationError

	if _, err := graph.ParseDirection(rs.Direction); err != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".direction",
			Message: err.Error(),
			Code:    ErrInvalidDirection,
		})
	}

	if rs.Match == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".match",
			Message: "match is required",
			Code:    ErrInvalidPredicate,
		})
	} else {
		errs = append(errs, validatePredicate(rs.Match, field+".match", false)...)
	}

	if rs.Filter != nil {
		errs = append(errs, validatePredicate(rs.Filter, field+".filter", true)...)
	}

	return errs
}

// predicateKind returns the single form set on p, or "" with the number of
// forms found when that number is not exactly one.
func predicateKind(p *PredicateSpec) (string, int) {
	var kinds []string
	if p.Always != nil {
		kinds = append(kinds, "always")
	}
	if p.Same != "" {
		kinds = append(kinds, "same")
	}
	if p.Differ != "" {
		kinds = append(kinds, "differ")
	}
	if p.Overlap != "" {
		kinds = append(kinds, "overlap")
	}
	if p.Self != nil {
		kinds = append(kinds, "self")
	}
	if p.Other != nil {
		kinds = append(kinds, "other")
	}
	if p.All != nil {
		kinds = append(kinds, "all")
	}
	if p.Any != nil {
		kinds = append(kinds, "any")
	}
	if p.Not != nil {
		kinds = append(kinds, "not")
	}
	if len(kinds) != 1 {
		return "", len(kinds)
	}
	return kinds[0], 1
}

func validatePredicate(p *PredicateSpec, field string, inFilter bool) []ValidationError {
	kind, count := predicateKind(p)
	if kind == "" {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("predicate must set exactly one form, found %d", count),
			Code:    ErrInvalidPredicate,
		}}
	}

	switch kind {
	case "same", "differ", "overlap", "self":
		if inFilter {
			return []ValidationError{{
				Field:   field + "." + kind,
				Message: "a target filter only sees the other payload",
				Code:    ErrSelfInFilter,
			}}
		}
		if kind == "self" {
			return validateFieldTest(p.Self, field+".self")
		}
	case "other":
		return validateFieldTest(p.Other, field+".other")
	case "all", "any":
		list := p.All
		if kind == "any" {
			list = p.Any
		}
		if len(list) == 0 {
			return []ValidationError{{
				Field:   field + "." + kind,
				Message: kind + " needs at least one predicate",
				Code:    ErrInvalidPredicate,
			}}
		}
		var errs []ValidationError
		for i := range list {
			errs = append(errs, validatePredicate(&list[i], fmt.Sprintf("%s.%s[%d]", field, kind, i), inFilter)...)
		}
		return errs
	case "not":
		return validatePredicate(p.Not, field+".not", inFilter)
	}
	return nil
}

func validateFieldTest(ft *FieldTest, field string) []ValidationError {
	var errs []ValidationError

	if ft.Path == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".path",
			Message: "path is required",
			Code:    ErrInvalidFieldTest,
		})
	}

	checks := 0
	if ft.Equals != nil {
		checks++
		if _, err := payload.FromAny(ft.Equals); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".equals",
				Message: err.Error(),
				Code:    ErrFloatForbidden,
			})
		}
	}
	if ft.In != nil {
		checks++
		if _, err := payload.FromAny(ft.In); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".in",
				Message: err.Error(),
				Code:    ErrFloatForbidden,
			})
		}
	}
	if ft.Exists != nil {
		checks++
	}
	if checks != 1 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("field test must set exactly one of equals, in, exists; found %d", checks),
			Code:    ErrInvalidFieldTest,
		})
	}

	return errs
}
