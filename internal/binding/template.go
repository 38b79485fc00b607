// Package binding handles the string binding syntax of the page model:
// property values that embed expressions between `{{` and `}}`. It splits
// binding strings into literal and expression segments, parses the embedded
// expressions, and extracts the property paths they reference.
package binding

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

const (
	openMarker  = "{{"
	closeMarker = "}}"
)

// Segment is one piece of a binding template: either literal text or an
// embedded expression.
type Segment struct {
	// Literal holds the raw text for literal segments; empty for expressions.
	Literal string
	// Src is the raw expression source, without the {{ }} markers.
	Src string
	// Expr is the parsed expression, nil for literal segments or when
	// parsing failed.
	Expr hcl.Expression
	// ParseErr carries a parse failure. It is surfaced when the binding is
	// evaluated, not when it is loaded: a page with one broken binding must
	// keep working everywhere else.
	ParseErr error
}

// IsExpr reports whether the segment is an embedded expression.
func (s Segment) IsExpr() bool {
	return s.Src != "" || s.Expr != nil || s.ParseErr != nil
}

// Template is a parsed binding string.
type Template struct {
	Raw      string
	Segments []Segment
}

// IsDynamic reports whether the string contains at least one complete
// `{{...}}` region and therefore needs evaluation.
func IsDynamic(s string) bool {
	start := strings.Index(s, openMarker)
	if start < 0 {
		return false
	}
	_, _, ok := scanExpr(s, start+len(openMarker))
	return ok
}

// ParseTemplate splits a binding string into segments and parses each
// embedded expression. An unterminated `{{` leaves the remainder of the
// string as literal text.
func ParseTemplate(raw string) *Template {
	t := &Template{Raw: raw}
	rest := raw
	for {
		start := strings.Index(rest, openMarker)
		if start < 0 {
			break
		}
		src, end, ok := scanExpr(rest, start+len(openMarker))
		if !ok {
			break
		}
		if start > 0 {
			t.Segments = append(t.Segments, Segment{Literal: rest[:start]})
		}
		t.Segments = append(t.Segments, parseExprSegment(src))
		rest = rest[end:]
	}
	if rest != "" {
		t.Segments = append(t.Segments, Segment{Literal: rest})
	}
	return t
}

// scanExpr scans from the first character after an opening marker to the
// matching `}}`, tracking brace nesting so object constructors inside the
// expression do not end it early. It returns the expression source and the
// offset just past the closing marker.
func scanExpr(s string, from int) (string, int, bool) {
	depth := 0
	for i := from; i < len(s); i++ {
		switch {
		case depth == 0 && strings.HasPrefix(s[i:], closeMarker):
			return s[from:i], i + len(closeMarker), true
		case s[i] == '{':
			depth++
		case s[i] == '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return "", 0, false
}

// parseExprSegment parses a single embedded expression.
func parseExprSegment(src string) Segment {
	seg := Segment{Src: src}
	if strings.TrimSpace(src) == "" {
		seg.ParseErr = fmt.Errorf("empty binding expression")
		return seg
	}
	expr, diags := hclsyntax.ParseExpression([]byte(src), "binding", hcl.InitialPos)
	if diags.HasErrors() {
		seg.ParseErr = fmt.Errorf("parsing binding expression %q: %w", src, diags)
		return seg
	}
	seg.Expr = expr
	return seg
}

// IsPure reports whether the template is a single expression with nothing but
// optional whitespace around it. A pure binding evaluates to the expression's
// native value; anything else renders to a string.
func (t *Template) IsPure() bool {
	exprs := 0
	for _, seg := range t.Segments {
		if seg.IsExpr() {
			exprs++
			continue
		}
		if strings.TrimSpace(seg.Literal) != "" {
			return false
		}
	}
	return exprs == 1
}

// Exprs returns the parsed expressions of all expression segments, skipping
// ones that failed to parse.
func (t *Template) Exprs() []hcl.Expression {
	var out []hcl.Expression
	for _, seg := range t.Segments {
		if seg.Expr != nil {
			out = append(out, seg.Expr)
		}
	}
	return out
}

// ParseErr returns the first parse error carried by any segment, if any.
func (t *Template) ParseErr() error {
	for _, seg := range t.Segments {
		if seg.ParseErr != nil {
			return seg.ParseErr
		}
	}
	return nil
}
