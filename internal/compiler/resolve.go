package compiler

import (
	"github.com/roach88/metricc/internal/ir"
)

// SortDefinitions orders defs so every definition comes after the
// definitions its expression references ({identifier} placeholders).
//
// known lists identifiers that exist outside defs (catalog metrics,
// attributes); references to them are always satisfied.
//
// The sort is a worklist: each pass moves every pending definition whose
// references are all resolved to the output, keeping input order. A pass
// that moves nothing ends the sort with a *DependencyError naming every
// definition left, its unresolved references, and any cycles among them.
// The output always contains every input definition, or the call fails.
func SortDefinitions(defs []ir.MetricDefinition, known ...string) ([]ir.MetricDefinition, error) {
	resolved := make(map[string]bool, len(defs)+len(known))
	for _, k := range known {
		resolved[k] = true
	}

	out := make([]ir.MetricDefinition, 0, len(defs))
	pending := defs
	for len(pending) > 0 {
		var next []ir.MetricDefinition
		for _, d := range pending {
			if allResolved(d.References(), resolved) {
				out = append(out, d)
				resolved[d.Identifier] = true
			} else {
				next = append(next, d)
			}
		}
		if len(next) == len(pending) {
			return nil, newDependencyError(next, resolved)
		}
		pending = next
	}
	return out, nil
}

func allResolved(refs []string, resolved map[string]bool) bool {
	for _, r := range refs {
		if !resolved[r] {
			return false
		}
	}
	return true
}

func newDependencyError(stuck []ir.MetricDefinition, resolved map[string]bool) *DependencyError {
	g := referenceGraph{edges: make(map[string][]string, len(stuck))}
	err := &DependencyError{}
	for _, d := range stuck {
		var missing []string
		for _, r := range d.References() {
			if !resolved[r] {
				missing = append(missing, r)
			}
		}
		err.Unresolved = append(err.Unresolved, UnresolvedDefinition{
			Identifier: d.Identifier,
			Missing:    missing,
		})
		if _, dup := g.edges[d.Identifier]; !dup {
			g.order = append(g.order, d.Identifier)
		}
		g.edges[d.Identifier] = append(g.edges[d.Identifier], missing...)
	}
	err.Cycles = findCycles(g)
	return err
}
