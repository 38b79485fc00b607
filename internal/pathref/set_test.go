package pathref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSetLongestPrefix(t *testing.T) {
	s := NewSet()
	s.Add(MustParse("Table1"))
	s.Add(MustParse("Table1.selectedRow"))
	s.Add(MustParse("Table1.selectedRow.name"))

	t.Run("exact match", func(t *testing.T) {
		got, ok := s.LongestPrefix(MustParse("Table1.selectedRow.name"))
		require.True(t, ok)
		assert.Equal(t, "Table1.selectedRow.name", got.String())
	})

	t.Run("reference deeper than the tree resolves to deepest known ancestor", func(t *testing.T) {
		got, ok := s.LongestPrefix(MustParse("Table1.selectedRow.name.first"))
		require.True(t, ok)
		assert.Equal(t, "Table1.selectedRow.name", got.String())
	})

	t.Run("unknown branch falls back to entity root", func(t *testing.T) {
		got, ok := s.LongestPrefix(MustParse("Table1.pageSize"))
		require.True(t, ok)
		assert.Equal(t, "Table1", got.String())
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, ok := s.LongestPrefix(MustParse("Nope.value"))
		assert.False(t, ok)
	})
}

func TestCollectInto(t *testing.T) {
	v := cty.ObjectVal(map[string]cty.Value{
		"text": cty.StringVal("hello"),
		"rows": cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal("a")}),
		}),
		"hidden": cty.NullVal(cty.Bool),
	})

	s := NewSet()
	CollectInto(s, "Table1", v)

	assert.Equal(t, []string{
		"Table1",
		"Table1.hidden",
		"Table1.rows",
		"Table1.rows[0]",
		"Table1.rows[0].name",
		"Table1.text",
	}, s.Strings())
}
