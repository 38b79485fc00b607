// Package entity models the page: the named nodes (widgets, actions, JS
// objects) whose configurations the engine evaluates. Each entity owns a
// configuration value whose string leaves may carry bindings.
package entity

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Kind classifies an entity.
type Kind string

const (
	KindWidget   Kind = "widget"
	KindAction   Kind = "action"
	KindJSObject Kind = "jsobject"
)

// ParseKind validates a raw kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindWidget, KindAction, KindJSObject:
		return Kind(raw), nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", raw)
	}
}

// Entity is one named node of the page.
type Entity struct {
	Name   string
	Kind   Kind
	Config cty.Value
}

// Page is the full set of entities the engine evaluates together.
type Page struct {
	entities []*Entity
	byName   map[string]*Entity
}

// NewPage validates the entity list and builds the page. Names must be
// unique and must be valid expression identifiers; a name bindings cannot
// reference would make the entity unreachable from the binding language.
func NewPage(entities []*Entity) (*Page, error) {
	p := &Page{byName: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity with empty name")
		}
		if !hclsyntax.ValidIdentifier(e.Name) {
			return nil, fmt.Errorf("entity name %q is not a valid identifier", e.Name)
		}
		if _, exists := p.byName[e.Name]; exists {
			return nil, fmt.Errorf("duplicate entity name %q", e.Name)
		}
		p.byName[e.Name] = e
		p.entities = append(p.entities, e)
	}
	return p, nil
}

// Entities returns the entities in page order.
func (p *Page) Entities() []*Entity {
	return p.entities
}

// Lookup returns an entity by name.
func (p *Page) Lookup(name string) (*Entity, bool) {
	e, ok := p.byName[name]
	return e, ok
}

// Roots returns the set of entity names, the legal roots for binding
// references.
func (p *Page) Roots() map[string]struct{} {
	out := make(map[string]struct{}, len(p.byName))
	for name := range p.byName {
		out[name] = struct{}{}
	}
	return out
}
