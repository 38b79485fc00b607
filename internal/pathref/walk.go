package pathref

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Walk visits every addressable path inside an entity's value, root first,
// in a deterministic order. Object and map values contribute attribute
// steps, lists and tuples contribute index steps. Null and unknown values
// are visited but not descended into.
func Walk(entity string, v cty.Value, fn func(Path, cty.Value)) {
	walk(Path{Entity: entity}, v, fn)
}

// WalkFrom is Walk rooted at an arbitrary path, visiting p itself and
// everything below the given value.
func WalkFrom(p Path, v cty.Value, fn func(Path, cty.Value)) {
	walk(p, v, fn)
}

func walk(p Path, v cty.Value, fn func(Path, cty.Value)) {
	fn(p, v)
	if v.IsNull() || !v.IsKnown() {
		return
	}

	ty := v.Type()
	switch {
	case ty.IsObjectType() || ty.IsMapType():
		vals := v.AsValueMap()
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(p.Child(AttrStep(k)), vals[k], fn)
		}
	case ty.IsTupleType() || ty.IsListType():
		for i, ev := range v.AsValueSlice() {
			walk(p.Child(IndexStep(i)), ev, fn)
		}
	}
}

// CollectInto walks an entity's value and adds every visited path to the set.
func CollectInto(s *Set, entity string, v cty.Value) {
	Walk(entity, v, func(p Path, _ cty.Value) {
		s.Add(p)
	})
}
