package pathref

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// FromTraversal converts an expression variable traversal into a Path. The
// traversal root becomes the entity name. Attribute steps and string or
// integer index steps are carried over; anything else (a fractional or
// non-constant index) truncates the path at that step, which is safe because
// a truncated path still names an ancestor of the referenced value.
func FromTraversal(tr hcl.Traversal) (Path, bool) {
	if len(tr) == 0 {
		return Path{}, false
	}
	p := Path{Entity: tr.RootName()}
	for _, part := range tr[1:] {
		switch step := part.(type) {
		case hcl.TraverseAttr:
			p.Steps = append(p.Steps, AttrStep(step.Name))
		case hcl.TraverseIndex:
			switch step.Key.Type() {
			case cty.Number:
				num := step.Key.AsBigFloat()
				if !num.IsInt() {
					return p, true
				}
				idx, _ := num.Int64()
				if idx < 0 {
					return p, true
				}
				p.Steps = append(p.Steps, IndexStep(int(idx)))
			case cty.String:
				p.Steps = append(p.Steps, AttrStep(step.Key.AsString()))
			default:
				return p, true
			}
		default:
			return p, true
		}
	}
	return p, true
}
