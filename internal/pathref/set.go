package pathref

import "sort"

// Set is the "all paths" collection: every addressable path across every
// entity currently on the page. References found in binding expressions are
// resolved against it.
type Set struct {
	paths map[string]Path
}

// NewSet returns an empty path set.
func NewSet() *Set {
	return &Set{paths: make(map[string]Path)}
}

// Add inserts a path into the set.
func (s *Set) Add(p Path) {
	s.paths[p.String()] = p
}

// Has reports whether the exact path is present.
func (s *Set) Has(p Path) bool {
	_, ok := s.paths[p.String()]
	return ok
}

// Len returns the number of paths in the set.
func (s *Set) Len() int {
	return len(s.paths)
}

// Strings returns the canonical forms of all paths, sorted.
func (s *Set) Strings() []string {
	out := make([]string, 0, len(s.paths))
	for k := range s.paths {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LongestPrefix returns the longest prefix of p present in the set. A
// reference like `Table1.selectedRow.name.missing` resolves to the deepest
// path the tree actually contains.
func (s *Set) LongestPrefix(p Path) (Path, bool) {
	for n := len(p.Steps); n >= 0; n-- {
		if q := p.Prefix(n); s.Has(q) {
			return q, true
		}
	}
	return Path{}, false
}
