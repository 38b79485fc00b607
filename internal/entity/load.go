package entity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// pageDoc mirrors the on-disk page document.
type pageDoc struct {
	Entities []entityDoc `json:"entities"`
}

type entityDoc struct {
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config"`
}

// DecodePage reads a page document from r. Entity configurations are
// arbitrary JSON and are bridged into cty values with their implied types.
func DecodePage(r io.Reader) (*Page, error) {
	var doc pageDoc
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding page document: %w", err)
	}

	entities := make([]*Entity, 0, len(doc.Entities))
	for _, ed := range doc.Entities {
		kind, err := ParseKind(ed.Kind)
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", ed.Name, err)
		}
		raw := ed.Config
		if len(raw) == 0 {
			raw = json.RawMessage("{}")
		}
		ty, err := ctyjson.ImpliedType(raw)
		if err != nil {
			return nil, fmt.Errorf("entity %q: inferring config type: %w", ed.Name, err)
		}
		cfg, err := ctyjson.Unmarshal(raw, ty)
		if err != nil {
			return nil, fmt.Errorf("entity %q: decoding config: %w", ed.Name, err)
		}
		if !cfg.Type().IsObjectType() {
			return nil, fmt.Errorf("entity %q: config must be a JSON object", ed.Name)
		}
		entities = append(entities, &Entity{Name: ed.Name, Kind: kind, Config: cfg})
	}

	return NewPage(entities)
}

// LoadPage reads a page document from a file.
func LoadPage(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page file: %w", err)
	}
	defer f.Close()

	page, err := DecodePage(f)
	if err != nil {
		return nil, fmt.Errorf("loading page %s: %w", path, err)
	}
	return page, nil
}
