package tree

import (
	"sort"

	"github.com/vk/bindflow/internal/pathref"
	"github.com/zclconf/go-cty/cty"
)

// Diff returns the property paths whose values differ between two trees,
// as deep in the tree as the structures allow. An entity present in only
// one tree contributes its root path. The result is sorted.
func Diff(old, new *Tree) []pathref.Path {
	changed := make(map[string]pathref.Path)
	record := func(p pathref.Path) {
		changed[p.String()] = p
	}

	for name, oldV := range old.entities {
		newV, ok := new.entities[name]
		if !ok {
			record(pathref.Path{Entity: name})
			continue
		}
		diffValue(pathref.Path{Entity: name}, oldV, newV, record)
	}
	for name := range new.entities {
		if _, ok := old.entities[name]; !ok {
			record(pathref.Path{Entity: name})
		}
	}

	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]pathref.Path, 0, len(keys))
	for _, k := range keys {
		out = append(out, changed[k])
	}
	return out
}

func diffValue(p pathref.Path, a, b cty.Value, record func(pathref.Path)) {
	if a.RawEquals(b) {
		return
	}
	if a.IsNull() || b.IsNull() || !a.IsKnown() || !b.IsKnown() {
		record(p)
		return
	}

	aTy, bTy := a.Type(), b.Type()
	switch {
	case objectish(aTy) && objectish(bTy):
		aVals, bVals := valueMap(a), valueMap(b)
		for k, av := range aVals {
			bv, ok := bVals[k]
			if !ok {
				record(p.Child(pathref.AttrStep(k)))
				continue
			}
			diffValue(p.Child(pathref.AttrStep(k)), av, bv, record)
		}
		for k := range bVals {
			if _, ok := aVals[k]; !ok {
				record(p.Child(pathref.AttrStep(k)))
			}
		}
	case listish(aTy) && listish(bTy):
		aVals, bVals := a.AsValueSlice(), b.AsValueSlice()
		if len(aVals) != len(bVals) {
			// A resize invalidates the collection as a whole; bindings that
			// index into it must re-resolve.
			record(p)
			return
		}
		for i := range aVals {
			diffValue(p.Child(pathref.IndexStep(i)), aVals[i], bVals[i], record)
		}
	default:
		record(p)
	}
}

func objectish(ty cty.Type) bool {
	return ty.IsObjectType() || ty.IsMapType()
}

func listish(ty cty.Type) bool {
	return ty.IsTupleType() || ty.IsListType()
}

func valueMap(v cty.Value) map[string]cty.Value {
	if v.LengthInt() == 0 {
		return map[string]cty.Value{}
	}
	return v.AsValueMap()
}
