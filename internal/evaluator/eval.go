package evaluator

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bindflow/internal/binding"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// evalTemplate evaluates a parsed binding against the given variables. A
// pure binding yields the expression's native value; a mixed template
// renders every segment to text and returns the concatenation.
func evalTemplate(tmpl *binding.Template, vars map[string]cty.Value, funcs map[string]function.Function) (cty.Value, error) {
	if err := tmpl.ParseErr(); err != nil {
		return cty.NilVal, err
	}

	evalCtx := &hcl.EvalContext{Variables: vars, Functions: funcs}

	if tmpl.IsPure() {
		exprs := tmpl.Exprs()
		v, diags := exprs[0].Value(evalCtx)
		if diags.HasErrors() {
			return cty.NilVal, diagError(diags)
		}
		return v, nil
	}

	var sb strings.Builder
	for _, seg := range tmpl.Segments {
		if !seg.IsExpr() {
			sb.WriteString(seg.Literal)
			continue
		}
		v, diags := seg.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return cty.NilVal, diagError(diags)
		}
		text, err := stringify(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("rendering %q: %w", seg.Src, err)
		}
		sb.WriteString(text)
	}
	return cty.StringVal(sb.String()), nil
}

// stringify renders an expression result as template text. Null and unknown
// values render empty, primitives convert via cty, and structured values
// serialize as JSON.
func stringify(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", nil
	}
	if v.Type().IsPrimitiveType() {
		converted, err := convert.Convert(v, cty.String)
		if err != nil {
			return "", err
		}
		return converted.AsString(), nil
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// diagError flattens HCL diagnostics into a single error, keeping only the
// messages; source ranges point into binding snippets and mean nothing to
// the page author.
func diagError(diags hcl.Diagnostics) error {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
