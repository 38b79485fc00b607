package evaluator

import (
	"context"
	"sort"
	"strings"

	"github.com/vk/bindflow/internal/binding"
	"github.com/vk/bindflow/internal/ctxlog"
	"github.com/vk/bindflow/internal/depgraph"
	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/pathref"
	"github.com/vk/bindflow/internal/tree"
)

// UpdateTree performs an incremental evaluation pass for a changed page.
// It diffs the new entity configurations against the previous ones, rewires
// dependencies for the bindings that changed, and re-evaluates only the
// changed paths and their transitive dependents. The previous evaluated
// tree stays intact until the pass succeeds.
func (e *DataTreeEvaluator) UpdateTree(ctx context.Context, page *entity.Page) (*Result, error) {
	if e.page == nil {
		return e.CreateFirstTree(ctx, page)
	}
	logger := ctxlog.FromContext(ctx)

	st, err := buildState(page, e.templateCache(), e.graph, e.refs)
	if err != nil {
		return nil, err
	}

	changed := tree.Diff(e.unevaluated, st.unevaluated)
	rewired := e.rewiredTemplates(st)
	if len(changed) == 0 && len(rewired) == 0 {
		logger.Debug("Update produced no changes.")
		return &Result{Tree: e.evaluated}, nil
	}

	seeds := expandSeeds(st.graph, changed, rewired)
	affected := st.graph.Reachable(seeds)
	logger.Debug("Incremental update scoped.",
		"changed_paths", len(changed),
		"rewired_bindings", len(rewired),
		"affected_paths", len(affected),
	)

	working := e.workingTree(st, changed, affected)

	var evalErrs []EvalError
	var reevaluated []string
	for _, id := range dynamicOrder(st.graph, st.templates) {
		if !affected[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evalErrs = e.evalPath(ctx, working, st, id, evalErrs)
		reevaluated = append(reevaluated, id)
	}

	updated := e.updatedPaths(working, st, changed, reevaluated)
	e.commit(page, st, working)
	logger.Debug("Incremental update evaluated.",
		"reevaluated_paths", len(reevaluated),
		"updated_paths", len(updated),
		"errors", len(evalErrs),
	)

	return &Result{Tree: e.evaluated, UpdatedPaths: updated, Errors: evalErrs}, nil
}

// expandSeeds turns the changed paths and rewired bindings into the seed set
// for reachability. A change is seeded together with every graph node it
// relates to by path prefix in either direction: a changed leaf like
// "Api1.data[0].name" must reach dependents wired to the coarser node
// "Api1.data", and a wholesale "Api1.data" replacement must reach dependents
// wired to a finer node inside it.
func expandSeeds(g *depgraph.Graph, changed []pathref.Path, rewired []string) []string {
	nodes := g.Nodes()
	seeds := make(map[string]bool, len(changed)+len(rewired))
	for _, p := range changed {
		id := p.String()
		seeds[id] = true
		for _, n := range nodes {
			if pathwisePrefix(n, id) || pathwisePrefix(id, n) {
				seeds[n] = true
			}
		}
	}
	for _, id := range rewired {
		seeds[id] = true
	}
	return sortedStrings(seeds)
}

// pathwisePrefix reports whether a names b or an ancestor of b.
func pathwisePrefix(a, b string) bool {
	if !strings.HasPrefix(b, a) {
		return false
	}
	if len(a) == len(b) {
		return true
	}
	return b[len(a)] == '.' || b[len(a)] == '['
}

// templateCache indexes the previous pass's parsed templates by raw binding
// string so unchanged bindings skip re-parsing.
func (e *DataTreeEvaluator) templateCache() map[string]*binding.Template {
	cache := make(map[string]*binding.Template, len(e.templates))
	for _, tmpl := range e.templates {
		cache[tmpl.Raw] = tmpl
	}
	return cache
}

// rewiredTemplates returns the dynamic paths whose resolved reference list
// differs from the previous pass: new bindings, and bindings whose
// references now resolve against a reshaped tree.
func (e *DataTreeEvaluator) rewiredTemplates(st *state) []string {
	var out []string
	for id, refIDs := range st.refs {
		if _, existed := e.templates[id]; !existed {
			out = append(out, id)
			continue
		}
		if !equalStrings(e.refs[id], refIDs) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// workingTree prepares the tree an incremental pass evaluates into: the
// previous evaluated tree, with every touched entity reset to its new
// configuration and the previous evaluated values copied back for the
// dynamic paths the pass will not revisit.
func (e *DataTreeEvaluator) workingTree(st *state, changed []pathref.Path, affected map[string]bool) *tree.Tree {
	working := e.evaluated.Clone()

	touched := make(map[string]bool)
	for _, p := range changed {
		touched[p.Entity] = true
	}

	for name := range touched {
		newCfg, ok := st.unevaluated.Entity(name)
		if !ok {
			working.DeleteEntity(name)
			continue
		}
		working.SetEntity(name, newCfg)

		// Carry previously evaluated values for this entity's surviving
		// bindings outside the affected set, so they are not reset to
		// their raw binding strings.
		for id, p := range st.dynPaths {
			if p.Entity != name || affected[id] {
				continue
			}
			if prev, err := e.evaluated.Get(p); err == nil {
				// Best effort: a structurally incompatible path keeps its
				// unevaluated value and is re-evaluated on the next pass
				// that touches it.
				_ = working.Set(p, prev)
			}
		}
	}
	return working
}

// updatedPaths compares the previous and new evaluated trees at every
// candidate path and returns the ones whose value actually changed.
func (e *DataTreeEvaluator) updatedPaths(working *tree.Tree, st *state, changed []pathref.Path, reevaluated []string) []string {
	candidates := make(map[string]pathref.Path, len(changed)+len(reevaluated))
	for _, p := range changed {
		candidates[p.String()] = p
	}
	for _, id := range reevaluated {
		candidates[id] = st.dynPaths[id]
	}

	updated := make(map[string]bool)
	for id, p := range candidates {
		oldV, oldErr := e.evaluated.Get(p)
		newV, newErr := working.Get(p)
		switch {
		case oldErr != nil || newErr != nil:
			updated[id] = true
		case !oldV.RawEquals(newV):
			updated[id] = true
		}
	}
	return sortedStrings(updated)
}
