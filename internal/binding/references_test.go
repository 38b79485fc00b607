package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bindflow/internal/pathref"
)

func testPathSet(raw ...string) *pathref.Set {
	s := pathref.NewSet()
	for _, r := range raw {
		s.Add(pathref.MustParse(r))
	}
	return s
}

func testEntities(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func pathStrings(paths []pathref.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func TestReferences(t *testing.T) {
	all := testPathSet(
		"Table1", "Table1.selectedRow", "Table1.selectedRow.name",
		"Api1", "Api1.data",
	)
	entities := testEntities("Table1", "Api1")

	testCases := []struct {
		name     string
		src      string
		expected []string
	}{
		{
			name:     "single exact reference",
			src:      "Api1.data",
			expected: []string{"Api1.data"},
		},
		{
			name:     "deep reference resolves to longest known prefix",
			src:      "Table1.selectedRow.name.first",
			expected: []string{"Table1.selectedRow.name"},
		},
		{
			name:     "unknown branch resolves to entity root",
			src:      "Table1.pageSize",
			expected: []string{"Table1"},
		},
		{
			name:     "multiple references deduplicated and sorted",
			src:      "format(\"%s-%s\", Table1.selectedRow.name, Api1.data) != Api1.data",
			expected: []string{"Api1.data", "Table1.selectedRow.name"},
		},
		{
			name:     "non-entity roots ignored",
			src:      "somevar + Api1.data",
			expected: []string{"Api1.data"},
		},
		{
			name:     "no references",
			src:      "1 + 2",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := ParseTemplate("{{" + tc.src + "}}")
			require.NoError(t, tmpl.ParseErr())
			got := TemplateReferences(tmpl, all, entities)
			if tc.expected == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.expected, pathStrings(got))
		})
	}
}

func TestTemplateReferencesAcrossSegments(t *testing.T) {
	all := testPathSet("Input1", "Input1.text", "Api1", "Api1.count")
	entities := testEntities("Input1", "Api1")

	tmpl := ParseTemplate("Hello {{Input1.text}}, {{Api1.count}} items, again {{Input1.text}}")
	got := TemplateReferences(tmpl, all, entities)
	assert.Equal(t, []string{"Api1.count", "Input1.text"}, pathStrings(got))
}
