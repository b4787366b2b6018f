package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/rulegraph/internal/engine"
	"github.com/roach88/rulegraph/internal/payload"
)

// NodeDef is a compiled node declaration, ready for Manager.CreateNode.
type NodeDef struct {
	ID    string
	Data  payload.Object
	Rules []Rule
}

// Network is a compiled network. Named rules are compiled once and shared by
// value across every node that references them.
type Network struct {
	Name  string
	Nodes []NodeDef

	spec  *NetworkSpec
	named map[string]Rule
}

// Build validates and compiles a network. Validation failures are returned
// as ValidationErrors.
func Build(spec *NetworkSpec) (*Network, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	net := &Network{
		Name:  spec.Name,
		spec:  spec,
		named: make(map[string]Rule, len(spec.Rules)),
	}

	for name, rs := range spec.Rules {
		r, err := compileRule(&rs, name)
		if err != nil {
			return nil, fmt.Errorf("rules.%s: %w", name, err)
		}
		net.named[name] = r
	}

	for i, ns := range spec.Nodes {
		data, err := payload.ObjectFromMap(ns.Data)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d].data: %w", i, err)
		}
		rules, err := net.Rules(ns.Rules)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		net.Nodes = append(net.Nodes, NodeDef{ID: ns.ID, Data: data, Rules: rules})
	}

	return net, nil
}

// Rules resolves references against the network's named rules, compiling
// inline rules on the way.
func (n *Network) Rules(refs []RuleRef) ([]Rule, error) {
	if errs := ValidateRefs(n.spec, refs, "rules"); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	out := make([]Rule, 0, len(refs))
	for i, ref := range refs {
		if ref.Inline == nil {
			out = append(out, n.named[ref.Name])
			continue
		}
		r, err := compileRule(ref.Inline, "inline")
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// RuleNames returns the names of the declared rules, sorted.
func (n *Network) RuleNames() []string {
	names := make([]string, 0, len(n.named))
	for name := range n.named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply creates every node of the network in declaration order.
func (n *Network) Apply(m *engine.Manager[payload.Object]) error {
	for _, def := range n.Nodes {
		if _, err := m.CreateNode(def.ID, def.Data.Clone(), def.Rules...); err != nil {
			return err
		}
	}
	return nil
}
