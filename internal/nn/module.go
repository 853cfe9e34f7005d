// Package nn implements the neural network building blocks used by the
// cached transformer stacks.
//
// This package provides:
//   - Module interface: named access to trainable parameters
//   - Parameter: shared-ownership handle around a parameter tensor
//   - Linear, TiedLinear: dense projections over the last axis
//   - Embedding, LayerNorm, Dropout, GELU
//
// Design inspired by PyTorch's nn.Module: modules expose their parameters
// under dotted names so that checkpoints written by other frameworks can be
// mapped onto them one to one.
package nn

import (
	"sort"
	"strings"
)

// Module is the base interface for all neural network components.
//
// Forward signatures differ between modules (attention takes a cache, the
// embeddings take ids), so only parameter access is shared.
type Module interface {
	// NamedParameters returns every trainable parameter keyed by its dotted
	// path relative to the module (e.g. "dense.weight").
	NamedParameters() Params
}

// Params maps dotted parameter names to parameters.
//
// The same *Parameter may appear under several names when weights are tied.
type Params map[string]*Parameter

// Merge adds every entry of child under prefix + "." + name.
func (p Params) Merge(prefix string, child Params) Params {
	for name, param := range child {
		p[Join(prefix, name)] = param
	}
	return p
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unique returns the distinct parameters ordered by their first name.
// Tied parameters are returned once.
func (p Params) Unique() []*Parameter {
	seen := make(map[*Parameter]bool, len(p))
	out := make([]*Parameter, 0, len(p))
	for _, name := range p.Names() {
		param := p[name]
		if seen[param] {
			continue
		}
		seen[param] = true
		out = append(out, param)
	}
	return out
}

// CountParameters returns the number of scalar weights in m, counting tied
// parameters once.
func CountParameters(m Module) int {
	total := 0
	for _, p := range m.NamedParameters().Unique() {
		total += p.Tensor().NumElements()
	}
	return total
}

// Join concatenates non-empty name segments with dots.
func Join(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ".")
}
