// Package tree implements the data tree: the in-memory mapping of entity
// name to its current property values, addressed by property paths. Values
// are cty values, so a tree is cheap to snapshot and safe to share between
// evaluation passes.
package tree

import (
	"fmt"
	"sort"

	"github.com/vk/bindflow/internal/pathref"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Tree maps entity names to their current values.
type Tree struct {
	entities map[string]cty.Value
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{entities: make(map[string]cty.Value)}
}

// FromEntities builds a tree from a name-to-value map.
func FromEntities(entities map[string]cty.Value) *Tree {
	t := New()
	for name, v := range entities {
		t.entities[name] = v
	}
	return t
}

// Clone returns a copy of the tree. Values are immutable, so only the top
// map is copied.
func (t *Tree) Clone() *Tree {
	return FromEntities(t.entities)
}

// Entity returns an entity's value.
func (t *Tree) Entity(name string) (cty.Value, bool) {
	v, ok := t.entities[name]
	return v, ok
}

// SetEntity replaces an entity's whole value.
func (t *Tree) SetEntity(name string, v cty.Value) {
	t.entities[name] = v
}

// DeleteEntity removes an entity from the tree.
func (t *Tree) DeleteEntity(name string) {
	delete(t.entities, name)
}

// Names returns the entity names, sorted.
func (t *Tree) Names() []string {
	out := make([]string, 0, len(t.entities))
	for name := range t.entities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Variables returns the tree as an evaluation-context variable map: one
// variable per entity.
func (t *Tree) Variables() map[string]cty.Value {
	out := make(map[string]cty.Value, len(t.entities))
	for name, v := range t.entities {
		out[name] = v
	}
	return out
}

// Get resolves a path to its current value.
func (t *Tree) Get(p pathref.Path) (cty.Value, error) {
	v, ok := t.entities[p.Entity]
	if !ok {
		return cty.NilVal, fmt.Errorf("unknown entity %q", p.Entity)
	}
	for i, step := range p.Steps {
		child, err := getStep(v, step)
		if err != nil {
			return cty.NilVal, fmt.Errorf("at %s: %w", p.Prefix(i+1), err)
		}
		v = child
	}
	return v, nil
}

func getStep(v cty.Value, step pathref.Step) (cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("cannot descend into null value")
	}
	ty := v.Type()
	if step.IsIndex() {
		if !ty.IsTupleType() && !ty.IsListType() {
			return cty.NilVal, fmt.Errorf("cannot index a %s", ty.FriendlyName())
		}
		if step.Index >= v.LengthInt() {
			return cty.NilVal, fmt.Errorf("index %d out of range", step.Index)
		}
		return v.Index(cty.NumberIntVal(int64(step.Index))), nil
	}
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(step.Attr) {
			return cty.NilVal, fmt.Errorf("no attribute %q", step.Attr)
		}
		return v.GetAttr(step.Attr), nil
	case ty.IsMapType():
		key := cty.StringVal(step.Attr)
		if !v.HasIndex(key).True() {
			return cty.NilVal, fmt.Errorf("no attribute %q", step.Attr)
		}
		return v.Index(key), nil
	default:
		return cty.NilVal, fmt.Errorf("cannot access attribute %q of a %s", step.Attr, ty.FriendlyName())
	}
}

// Set writes a value at a path, rebuilding the enclosing containers (cty
// values are immutable). Setting a missing attribute on an object creates
// it; setting past the end of a collection is an error.
func (t *Tree) Set(p pathref.Path, nv cty.Value) error {
	cur, ok := t.entities[p.Entity]
	if !ok {
		return fmt.Errorf("unknown entity %q", p.Entity)
	}
	updated, err := setSteps(cur, p.Steps, nv)
	if err != nil {
		return fmt.Errorf("setting %s: %w", p, err)
	}
	t.entities[p.Entity] = updated
	return nil
}

func setSteps(v cty.Value, steps []pathref.Step, nv cty.Value) (cty.Value, error) {
	if len(steps) == 0 {
		return nv, nil
	}
	step := steps[0]

	if step.IsIndex() {
		if v.IsNull() || !v.IsKnown() || (!v.Type().IsTupleType() && !v.Type().IsListType()) {
			return cty.NilVal, fmt.Errorf("cannot index a %s", v.Type().FriendlyName())
		}
		vals := v.AsValueSlice()
		if step.Index >= len(vals) {
			return cty.NilVal, fmt.Errorf("index %d out of range", step.Index)
		}
		child, err := setSteps(vals[step.Index], steps[1:], nv)
		if err != nil {
			return cty.NilVal, err
		}
		vals[step.Index] = child
		return cty.TupleVal(vals), nil
	}

	if v.IsNull() || !v.IsKnown() || (!v.Type().IsObjectType() && !v.Type().IsMapType()) {
		return cty.NilVal, fmt.Errorf("cannot set attribute %q on a %s", step.Attr, v.Type().FriendlyName())
	}
	attrs := map[string]cty.Value{}
	if v.LengthInt() > 0 {
		attrs = v.AsValueMap()
	}
	cur, ok := attrs[step.Attr]
	if !ok {
		if len(steps) > 1 {
			return cty.NilVal, fmt.Errorf("no attribute %q", step.Attr)
		}
		cur = cty.NullVal(cty.DynamicPseudoType)
	}
	child, err := setSteps(cur, steps[1:], nv)
	if err != nil {
		return cty.NilVal, err
	}
	attrs[step.Attr] = child
	return cty.ObjectVal(attrs), nil
}

// JSON serializes the whole tree as one JSON object keyed by entity name.
func (t *Tree) JSON() ([]byte, error) {
	if len(t.entities) == 0 {
		return []byte("{}"), nil
	}
	obj := cty.ObjectVal(t.entities)
	return ctyjson.Marshal(obj, obj.Type())
}

// EntityJSON serializes a single entity.
func (t *Tree) EntityJSON(name string) ([]byte, error) {
	v, ok := t.entities[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", name)
	}
	return ctyjson.Marshal(v, v.Type())
}
