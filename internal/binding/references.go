package binding

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bindflow/internal/pathref"
)

// References extracts the property paths an expression depends on. Each
// variable traversal whose root names a known entity is resolved to the
// longest prefix present in the all-paths set; traversal roots that are not
// entities are ignored, since they may be evaluation-context globals. The
// result is deduplicated and sorted.
func References(expr hcl.Expression, all *pathref.Set, entities map[string]struct{}) []pathref.Path {
	seen := make(map[string]pathref.Path)
	for _, traversal := range expr.Variables() {
		if _, ok := entities[traversal.RootName()]; !ok {
			continue
		}
		p, ok := pathref.FromTraversal(traversal)
		if !ok {
			continue
		}
		resolved, ok := all.LongestPrefix(p)
		if !ok {
			// The entity is known but absent from the path set; depend on
			// its root so the reference re-resolves when the entity changes.
			resolved = p.Root()
		}
		seen[resolved.String()] = resolved
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]pathref.Path, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// TemplateReferences aggregates References across every expression segment
// of a template.
func TemplateReferences(t *Template, all *pathref.Set, entities map[string]struct{}) []pathref.Path {
	seen := make(map[string]pathref.Path)
	for _, expr := range t.Exprs() {
		for _, p := range References(expr, all, entities) {
			seen[p.String()] = p
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]pathref.Path, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}
