// Package pathref models property paths: the addresses of values inside an
// entity's configuration, such as `Table1.rows[0].name`. Paths are the node
// identity of the dependency graph and the key space of the data tree.
package pathref

import (
	"fmt"
	"strings"
)

// Step is a single traversal step below the entity root. A step is either an
// attribute access (Attr non-empty) or a collection index (Attr empty).
type Step struct {
	Attr  string
	Index int
}

// AttrStep returns a step that accesses a named attribute.
func AttrStep(name string) Step {
	return Step{Attr: name, Index: -1}
}

// IndexStep returns a step that accesses a list or tuple element.
func IndexStep(i int) Step {
	return Step{Index: i}
}

// IsIndex reports whether the step is a collection index access.
func (s Step) IsIndex() bool {
	return s.Attr == ""
}

// Path addresses a value inside the data tree. A path with no steps
// addresses the entity root itself.
type Path struct {
	Entity string
	Steps  []Step
}

// Root returns the path of the owning entity.
func (p Path) Root() Path {
	return Path{Entity: p.Entity}
}

// Prefix returns the path truncated to the first n steps.
func (p Path) Prefix(n int) Path {
	return Path{Entity: p.Entity, Steps: p.Steps[:n]}
}

// Child returns the path extended by one step.
func (p Path) Child(s Step) Path {
	steps := make([]Step, len(p.Steps), len(p.Steps)+1)
	copy(steps, p.Steps)
	return Path{Entity: p.Entity, Steps: append(steps, s)}
}

// HasPrefix reports whether prefix addresses p itself or one of its
// ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if p.Entity != prefix.Entity || len(prefix.Steps) > len(p.Steps) {
		return false
	}
	for i, s := range prefix.Steps {
		if p.Steps[i] != s {
			return false
		}
	}
	return true
}

// String serializes the path into its canonical form, e.g. `Table1.rows[0].name`.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString(p.Entity)
	for _, s := range p.Steps {
		if s.IsIndex() {
			fmt.Fprintf(&sb, "[%d]", s.Index)
		} else {
			sb.WriteRune('.')
			sb.WriteString(s.Attr)
		}
	}
	return sb.String()
}

// Parse converts a canonical path string back into a Path. It accepts the
// forms produced by String: an entity name followed by any mix of `.attr`
// and `[index]` steps.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("path cannot be empty")
	}

	i := 0
	name, n := scanName(raw[i:])
	if n == 0 {
		return Path{}, fmt.Errorf("invalid path %q: missing entity name", raw)
	}
	p := Path{Entity: name}
	i += n

	for i < len(raw) {
		switch raw[i] {
		case '.':
			i++
			name, n := scanName(raw[i:])
			if n == 0 {
				return Path{}, fmt.Errorf("invalid path %q: empty attribute segment", raw)
			}
			p.Steps = append(p.Steps, AttrStep(name))
			i += n
		case '[':
			i++
			idx, n := scanIndex(raw[i:])
			if n == 0 || i+n >= len(raw) || raw[i+n] != ']' {
				return Path{}, fmt.Errorf("invalid path %q: malformed index", raw)
			}
			p.Steps = append(p.Steps, IndexStep(idx))
			i += n + 1
		default:
			return Path{}, fmt.Errorf("invalid path %q: unexpected character %q", raw, raw[i])
		}
	}
	return p, nil
}

// MustParse is a test helper that panics on a malformed path.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// scanName consumes a name segment: anything up to the next '.' or '['.
func scanName(s string) (string, int) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == '[' || s[i] == ']' {
			return s[:i], i
		}
	}
	return s, len(s)
}

// scanIndex consumes a run of decimal digits.
func scanIndex(s string) (int, int) {
	idx := 0
	i := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		idx = idx*10 + int(s[i]-'0')
	}
	return idx, i
}
