package compiler

// referenceGraph maps a definition identifier to the identifiers it
// references. order keeps traversal deterministic.
type referenceGraph struct {
	order []string
	edges map[string][]string
}

// findCycles returns every reference cycle in g.
//
// The algorithm:
//  1. Find strongly connected components with Tarjan's algorithm
//  2. Keep components with more than one node, or a self-reference
//  3. Reconstruct a closed path through each kept component
//
// Output order follows g.order, so equal graphs yield equal reports.
func findCycles(g referenceGraph) []Cycle {
	var cycles []Cycle
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			cycles = append(cycles, Cycle{Path: cyclePath(scc, g)})
		}
	}
	return cycles
}

func hasSelfLoop(node string, g referenceGraph) bool {
	for _, n := range g.edges[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Each component lists its
// members in g.order.
func tarjanSCC(g referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, known := g.edges[w]; !known {
				continue // dangling reference, not a node
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			members := make(map[string]bool)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members[w] = true
				if w == v {
					break
				}
			}
			scc := make([]string, 0, len(members))
			for _, n := range g.order {
				if members[n] {
					scc = append(scc, n)
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cyclePath walks from the first member of scc along edges inside the
// component until it returns to the start.
func cyclePath(scc []string, g referenceGraph) []string {
	start := scc[0]
	if len(scc) == 1 {
		return []string{start, start}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, n := range g.edges[current] {
			if n == start && len(path) > 1 {
				next = n
				break
			}
			if inSCC[n] && !visited[n] && next == "" {
				next = n
			}
		}
		if next == "" {
			// Dead end inside the component; close the path at start.
			return append(path, start)
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
