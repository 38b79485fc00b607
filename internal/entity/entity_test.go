package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePage(t *testing.T) {
	t.Run("valid page", func(t *testing.T) {
		doc := `{
			"entities": [
				{"name": "Api1", "kind": "action", "config": {"data": [1, 2, 3]}},
				{"name": "Text1", "kind": "widget", "config": {"text": "{{Api1.data}}"}}
			]
		}`
		page, err := DecodePage(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Len(t, page.Entities(), 2)

		api, ok := page.Lookup("Api1")
		require.True(t, ok)
		assert.Equal(t, KindAction, api.Kind)
		assert.True(t, api.Config.Type().IsObjectType())

		roots := page.Roots()
		assert.Contains(t, roots, "Api1")
		assert.Contains(t, roots, "Text1")
	})

	t.Run("missing config defaults to empty object", func(t *testing.T) {
		doc := `{"entities": [{"name": "JS1", "kind": "jsobject"}]}`
		page, err := DecodePage(strings.NewReader(doc))
		require.NoError(t, err)
		js, ok := page.Lookup("JS1")
		require.True(t, ok)
		assert.Equal(t, 0, js.Config.LengthInt())
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		doc := `{"entities": [
			{"name": "A", "kind": "widget", "config": {}},
			{"name": "A", "kind": "action", "config": {}}
		]}`
		_, err := DecodePage(strings.NewReader(doc))
		assert.ErrorContains(t, err, "duplicate entity name")
	})

	t.Run("invalid identifier rejected", func(t *testing.T) {
		doc := `{"entities": [{"name": "my widget", "kind": "widget", "config": {}}]}`
		_, err := DecodePage(strings.NewReader(doc))
		assert.ErrorContains(t, err, "not a valid identifier")
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		doc := `{"entities": [{"name": "A", "kind": "gadget", "config": {}}]}`
		_, err := DecodePage(strings.NewReader(doc))
		assert.ErrorContains(t, err, "unknown entity kind")
	})

	t.Run("non-object config rejected", func(t *testing.T) {
		doc := `{"entities": [{"name": "A", "kind": "widget", "config": [1, 2]}]}`
		_, err := DecodePage(strings.NewReader(doc))
		assert.ErrorContains(t, err, "must be a JSON object")
	})

	t.Run("malformed document", func(t *testing.T) {
		_, err := DecodePage(strings.NewReader(`{"entities": [`))
		assert.Error(t, err)
	})
}
