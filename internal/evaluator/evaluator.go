// Package evaluator implements the data tree evaluator: it finds the
// bindings in a page's entity configurations, builds the dependency graph
// between property paths, and evaluates bindings in topological order —
// fully on the first pass, and incrementally (only the affected subgraph)
// on every subsequent page change.
package evaluator

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/bindflow/internal/binding"
	"github.com/vk/bindflow/internal/ctxlog"
	"github.com/vk/bindflow/internal/depgraph"
	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/pathref"
	"github.com/vk/bindflow/internal/tree"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// EvalError describes a single binding that failed to evaluate. Evaluation
// errors are data: the engine records them, nulls the path, and keeps going.
type EvalError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of a full or incremental evaluation pass.
type Result struct {
	// Tree is the evaluated data tree after the pass.
	Tree *tree.Tree
	// UpdatedPaths lists the paths whose evaluated value changed, sorted.
	UpdatedPaths []string
	// Errors holds the per-path evaluation failures of this pass.
	Errors []EvalError
}

// DataTreeEvaluator holds the state carried between evaluation passes: the
// page, the unevaluated and evaluated trees, the parsed binding templates,
// and the dependency graph over property paths.
type DataTreeEvaluator struct {
	page        *entity.Page
	unevaluated *tree.Tree
	evaluated   *tree.Tree
	allPaths    *pathref.Set
	graph       *depgraph.Graph
	templates   map[string]*binding.Template
	dynPaths    map[string]pathref.Path
	refs        map[string][]string
	funcs       map[string]function.Function
}

// New returns an evaluator with no page loaded.
func New() *DataTreeEvaluator {
	return &DataTreeEvaluator{
		unevaluated: tree.New(),
		evaluated:   tree.New(),
		allPaths:    pathref.NewSet(),
		graph:       depgraph.New(),
		templates:   make(map[string]*binding.Template),
		dynPaths:    make(map[string]pathref.Path),
		refs:        make(map[string][]string),
		funcs:       binding.Functions(),
	}
}

// Tree returns the current evaluated data tree.
func (e *DataTreeEvaluator) Tree() *tree.Tree {
	return e.evaluated
}

// CreateFirstTree performs the full evaluation pass for a freshly loaded
// page: it materializes the unevaluated tree, discovers every binding,
// builds the dependency graph, and evaluates all dynamic paths in
// topological order. A dependency cycle fails the whole pass.
func (e *DataTreeEvaluator) CreateFirstTree(ctx context.Context, page *entity.Page) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	st, err := buildState(page, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	logger.Debug("Dependency graph built.",
		"entities", len(page.Entities()),
		"paths", st.allPaths.Len(),
		"bindings", len(st.templates),
	)

	order := dynamicOrder(st.graph, st.templates)
	working := st.unevaluated.Clone()

	var evalErrs []EvalError
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evalErrs = e.evalPath(ctx, working, st, id, evalErrs)
	}

	e.commit(page, st, working)
	logger.Debug("First tree evaluated.", "evaluated_paths", len(order), "errors", len(evalErrs))

	return &Result{Tree: e.evaluated, UpdatedPaths: order, Errors: evalErrs}, nil
}

// state bundles the structures derived from a page. Passes build a state
// first and commit it to the evaluator only when they succeed, so a cycle
// or a cancellation never corrupts the last good tree.
type state struct {
	unevaluated *tree.Tree
	allPaths    *pathref.Set
	roots       map[string]struct{}
	graph       *depgraph.Graph
	templates   map[string]*binding.Template
	dynPaths    map[string]pathref.Path
	refs        map[string][]string
	cache       map[string]*binding.Template
}

// buildState derives the dependency state for a page. cache maps raw
// binding strings to already-parsed templates from the previous pass, so an
// incremental update only re-parses the bindings that actually changed.
// prevGraph and prevRefs, when given, are the previous pass's graph and
// reference lists: the new graph is then a rewired clone instead of a
// rebuild.
func buildState(page *entity.Page, cache map[string]*binding.Template, prevGraph *depgraph.Graph, prevRefs map[string][]string) (*state, error) {
	st := &state{
		unevaluated: tree.New(),
		allPaths:    pathref.NewSet(),
		roots:       page.Roots(),
		templates:   make(map[string]*binding.Template),
		dynPaths:    make(map[string]pathref.Path),
		refs:        make(map[string][]string),
		cache:       cache,
	}
	for _, ent := range page.Entities() {
		st.unevaluated.SetEntity(ent.Name, ent.Config)
		pathref.CollectInto(st.allPaths, ent.Name, ent.Config)
	}
	for _, ent := range page.Entities() {
		if err := st.registerSubtree(pathref.Path{Entity: ent.Name}, ent.Config); err != nil {
			return nil, err
		}
	}
	if err := st.wireGraph(prevGraph, prevRefs); err != nil {
		return nil, err
	}
	if err := st.graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("invalid dependency graph: %w", err)
	}
	return st, nil
}

// wireGraph builds the dependency graph for the registered bindings. With
// no previous graph it builds from scratch; otherwise it clones the
// previous graph and rewires only the bindings whose reference lists
// changed, dropping edges of vanished bindings and pruning path nodes
// nothing references anymore.
func (st *state) wireGraph(prevGraph *depgraph.Graph, prevRefs map[string][]string) error {
	if prevGraph == nil {
		st.graph = depgraph.New()
		for id := range st.refs {
			st.graph.AddNode(id)
			if err := st.addRefEdges(id); err != nil {
				return err
			}
		}
		return st.linkContainers()
	}

	st.graph = prevGraph.Clone()
	for id := range prevRefs {
		if _, ok := st.refs[id]; !ok {
			// The binding is gone but the path may still be referenced by
			// others; drop its dependencies and let pruning decide.
			st.graph.RemoveEdgesTo(id)
		}
	}
	for id, refIDs := range st.refs {
		if old, ok := prevRefs[id]; ok && equalStrings(old, refIDs) {
			continue
		}
		st.graph.RemoveEdgesTo(id)
		st.graph.AddNode(id)
		if err := st.addRefEdges(id); err != nil {
			return err
		}
	}
	st.pruneOrphans()
	return st.linkContainers()
}

func (st *state) addRefEdges(id string) error {
	for _, refID := range st.refs[id] {
		if err := st.graph.AddEdge(refID, id); err != nil {
			return err
		}
	}
	return nil
}

// linkContainers adds the implicit edge from every dynamic path to each
// path node naming one of its ancestors. A binding referencing a container
// then evaluates after the dynamic leaves nested inside it and is
// re-evaluated whenever their output changes.
func (st *state) linkContainers() error {
	nodes := st.graph.Nodes()
	for id := range st.templates {
		for _, n := range nodes {
			if n == id || !pathwisePrefix(n, id) {
				continue
			}
			if err := st.graph.AddEdge(id, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// pruneOrphans drops non-binding path nodes with no dependents left, so
// rewired graphs do not accumulate stale nodes across updates.
func (st *state) pruneOrphans() {
	for _, id := range st.graph.Nodes() {
		if _, ok := st.templates[id]; ok {
			continue
		}
		dependents, err := st.graph.Dependents(id)
		if err == nil && len(dependents) == 0 {
			st.graph.RemoveNode(id)
		}
	}
}

// registerSubtree scans a value for dynamic string leaves and registers a
// template for each one found.
func (st *state) registerSubtree(p pathref.Path, v cty.Value) error {
	var regErr error
	pathref.WalkFrom(p, v, func(q pathref.Path, qv cty.Value) {
		if regErr != nil || qv.IsNull() || !qv.IsKnown() || qv.Type() != cty.String {
			return
		}
		raw := qv.AsString()
		if !binding.IsDynamic(raw) {
			return
		}
		if err := st.registerTemplate(q, raw); err != nil {
			regErr = err
		}
	})
	return regErr
}

// registerTemplate parses one binding and records its resolved reference
// list. Previously parsed templates are reused when the raw string is
// unchanged. Edges are wired afterwards by wireGraph.
func (st *state) registerTemplate(p pathref.Path, raw string) error {
	id := p.String()
	tmpl, ok := st.cache[raw]
	if !ok {
		tmpl = binding.ParseTemplate(raw)
	}
	st.templates[id] = tmpl
	st.dynPaths[id] = p

	refs := binding.TemplateReferences(tmpl, st.allPaths, st.roots)
	refIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		refID := ref.String()
		if refID == id {
			return fmt.Errorf("invalid dependency graph: %q references itself", id)
		}
		refIDs = append(refIDs, refID)
	}
	st.refs[id] = refIDs
	return nil
}

// dynamicOrder filters a full topological sort down to the paths that carry
// templates: the only ones that need evaluation.
func dynamicOrder(g *depgraph.Graph, templates map[string]*binding.Template) []string {
	var out []string
	for _, id := range g.TopoSort() {
		if _, ok := templates[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// evalPath evaluates a single dynamic path against the working tree,
// appending to evalErrs on failure and nulling the path's value.
func (e *DataTreeEvaluator) evalPath(ctx context.Context, working *tree.Tree, st *state, id string, evalErrs []EvalError) []EvalError {
	logger := ctxlog.FromContext(ctx)
	p := st.dynPaths[id]

	v, err := evalTemplate(st.templates[id], working.Variables(), e.funcs)
	if err != nil {
		logger.Debug("Binding evaluation failed.", "path", id, "error", err)
		evalErrs = append(evalErrs, EvalError{Path: id, Message: err.Error()})
		v = cty.NullVal(cty.DynamicPseudoType)
	}
	if err := working.Set(p, v); err != nil {
		evalErrs = append(evalErrs, EvalError{Path: id, Message: err.Error()})
	}
	return evalErrs
}

// commit installs a successful pass's state.
func (e *DataTreeEvaluator) commit(page *entity.Page, st *state, working *tree.Tree) {
	e.page = page
	e.unevaluated = st.unevaluated
	e.allPaths = st.allPaths
	e.graph = st.graph
	e.templates = st.templates
	e.dynPaths = st.dynPaths
	e.refs = st.refs
	e.evaluated = working
}

func sortedStrings(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
