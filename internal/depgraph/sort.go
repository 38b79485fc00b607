package depgraph

import "sort"

// TopoSort returns every node in dependency order: a node always appears
// after everything it depends on. Ties are broken lexicographically so the
// evaluation order is identical across runs. The graph must be acyclic;
// callers run DetectCycles first, and any leftover nodes are appended at the
// end rather than silently dropped.
func (g *Graph) TopoSort() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Kahn's algorithm over a min-ordered frontier.
	indegree := make(map[string]int, len(g.nodes))
	var frontier []string
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
		if len(n.deps) == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(g.nodes))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var unlocked []string
		for depID := range g.nodes[id].dependents {
			indegree[depID]--
			if indegree[depID] == 0 {
				unlocked = append(unlocked, depID)
			}
		}
		sort.Strings(unlocked)
		frontier = mergeSorted(frontier, unlocked)
	}

	if len(order) < len(g.nodes) {
		var rest []string
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		for id := range g.nodes {
			if !placed[id] {
				rest = append(rest, id)
			}
		}
		sort.Strings(rest)
		order = append(order, rest...)
	}
	return order
}

// mergeSorted merges two sorted string slices into one sorted slice.
func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// Reachable returns the seed IDs plus every transitive dependent, as a set.
// This is the re-evaluation frontier after the seed paths change. Seeds that
// are not graph nodes are still included in the result; a changed static
// value participates in invalidation even though nothing depends on it yet.
func (g *Graph) Reachable(seeds []string) map[string]bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make(map[string]bool, len(seeds))
	var visit func(id string)
	visit = func(id string) {
		if out[id] {
			return
		}
		out[id] = true
		n, ok := g.nodes[id]
		if !ok {
			return
		}
		for depID := range n.dependents {
			visit(depID)
		}
	}
	for _, id := range seeds {
		visit(id)
	}
	return out
}
