package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rulegraph/internal/graph"
	"github.com/roach88/rulegraph/internal/payload"
)

// Node and Rule are the graph types instantiated for file-defined networks.
type (
	Node = graph.Node[payload.Object]
	Rule = graph.Rule[payload.Object]
)

// NetworkSpec is the decoded form of a network file.
type NetworkSpec struct {
	Name  string              `json:"name" yaml:"name"`
	Rules map[string]RuleSpec `json:"rules,omitempty" yaml:"rules,omitempty"`
	Nodes []NodeSpec          `json:"nodes" yaml:"nodes"`
}

// NodeSpec declares one node. Rules are references to named rules or inline
// rule definitions, in declaration order.
type NodeSpec struct {
	ID    string         `json:"id" yaml:"id"`
	Data  map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Rules []RuleRef      `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// RuleSpec declares a rule: a direction, a match predicate over (self, other)
// and an optional target filter over other.
type RuleSpec struct {
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Direction string         `json:"direction,omitempty" yaml:"direction,omitempty"`
	Match     *PredicateSpec `json:"match" yaml:"match"`
	Filter    *PredicateSpec `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// PredicateSpec is a predicate over two payloads. Exactly one field is set.
type PredicateSpec struct {
	Always  *bool           `json:"always,omitempty" yaml:"always,omitempty"`
	Same    string          `json:"same,omitempty" yaml:"same,omitempty"`
	Differ  string          `json:"differ,omitempty" yaml:"differ,omitempty"`
	Overlap string          `json:"overlap,omitempty" yaml:"overlap,omitempty"`
	Self    *FieldTest      `json:"self,omitempty" yaml:"self,omitempty"`
	Other   *FieldTest      `json:"other,omitempty" yaml:"other,omitempty"`
	All     []PredicateSpec `json:"all,omitempty" yaml:"all,omitempty"`
	Any     []PredicateSpec `json:"any,omitempty" yaml:"any,omitempty"`
	Not     *PredicateSpec  `json:"not,omitempty" yaml:"not,omitempty"`
}

// FieldTest checks one field of a single payload. Exactly one of Equals, In
// and Exists is set.
type FieldTest struct {
	Path   string `json:"path" yaml:"path"`
	Equals any    `json:"equals,omitempty" yaml:"equals,omitempty"`
	In     []any  `json:"in,omitempty" yaml:"in,omitempty"`
	Exists *bool  `json:"exists,omitempty" yaml:"exists,omitempty"`
}

// RuleRef is either the name of a rule declared under NetworkSpec.Rules or
// an inline RuleSpec.
type RuleRef struct {
	Name   string
	Inline *RuleSpec
}

// String returns the referenced name, or the inline rule's name.
func (r RuleRef) String() string {
	if r.Inline != nil {
		if r.Inline.Name != "" {
			return r.Inline.Name
		}
		return "<inline>"
	}
	return r.Name
}

// MarshalJSON encodes a named reference as a string and an inline rule as an
// object.
func (r RuleRef) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return json.Marshal(r.Inline)
	}
	return json.Marshal(r.Name)
}

// UnmarshalJSON accepts a string (named reference) or an object (inline rule).
func (r *RuleRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.Name)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var spec RuleSpec
	if err := dec.Decode(&spec); err != nil {
		return fmt.Errorf("inline rule: %w", err)
	}
	r.Inline = &spec
	return nil
}

// inlineRuleKeys are the keys an inline rule mapping may contain.
var inlineRuleKeys = map[string]bool{
	"name": true, "direction": true, "match": true, "filter": true,
}

// UnmarshalYAML accepts a scalar (named reference) or a mapping (inline rule).
func (r *RuleRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&r.Name)
	case yaml.MappingNode:
		// Node.Decode does not inherit KnownFields, so check keys here.
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i].Value
			if !inlineRuleKeys[key] {
				return fmt.Errorf("line %d: field %s not found in inline rule", value.Content[i].Line, key)
			}
		}
		var spec RuleSpec
		if err := value.Decode(&spec); err != nil {
			return err
		}
		r.Inline = &spec
		return nil
	default:
		return fmt.Errorf("line %d: rule must be a name or a mapping", value.Line)
	}
}
