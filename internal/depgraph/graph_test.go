package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Empty(t, g.Nodes())
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Equal(t, []string{"a"}, g.Nodes())

	g.AddNode("a") // idempotent
	assert.Equal(t, []string{"a"}, g.Nodes())

	g.AddNode("b")
	assert.Equal(t, []string{"a", "b"}, g.Nodes())
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("a", "b")) // b depends on a

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("endpoints created implicitly", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("x", "y"))
		assert.Equal(t, []string{"x", "y"}, g.Nodes())
	})

	t.Run("self edge rejected", func(t *testing.T) {
		g := New()
		err := g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")
	})
}

func TestRemoveEdgesTo(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "d"))

	g.RemoveEdgesTo("c")

	deps, err := g.Dependencies("c")
	require.NoError(t, err)
	assert.Empty(t, deps)

	// Outgoing edge survives.
	dependents, err := g.Dependents("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, dependents)

	dependents, err = g.Dependents("a")
	require.NoError(t, err)
	assert.Empty(t, dependents)
}

func TestRemoveNode(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	g.RemoveNode("b")

	assert.Equal(t, []string{"a", "c"}, g.Nodes())
	dependents, err := g.Dependents("a")
	require.NoError(t, err)
	assert.Empty(t, dependents)
	deps, err := g.Dependencies("c")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, New().DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("a", "c"))
		require.NoError(t, g.AddEdge("b", "d"))
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("direct cycle detected", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))
		assert.ErrorContains(t, g.DetectCycles(), "cyclic dependency")
	})

	t.Run("long cycle detected", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "b"))
		assert.ErrorContains(t, g.DetectCycles(), "cyclic dependency")
	})
}

func TestTopoSort(t *testing.T) {
	t.Run("respects dependency order", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("Api1.data", "Table1.tableData"))
		require.NoError(t, g.AddEdge("Table1.tableData", "Text1.text"))
		require.NoError(t, g.AddEdge("Api1.data", "Text1.text"))

		order := g.TopoSort()
		assert.Equal(t, []string{"Api1.data", "Table1.tableData", "Text1.text"}, order)
	})

	t.Run("deterministic tie break", func(t *testing.T) {
		g := New()
		g.AddNode("c")
		g.AddNode("a")
		g.AddNode("b")

		order := g.TopoSort()
		assert.Equal(t, []string{"a", "b", "c"}, order)
	})

	t.Run("includes all nodes", func(t *testing.T) {
		g := New()
		require.NoError(t, g.AddEdge("a", "b"))
		g.AddNode("isolated")
		assert.Len(t, g.TopoSort(), 3)
	})
}

func TestReachable(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("x", "y"))

	t.Run("transitive dependents", func(t *testing.T) {
		got := g.Reachable([]string{"a"})
		assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, got)
	})

	t.Run("unrelated subgraph excluded", func(t *testing.T) {
		got := g.Reachable([]string{"a"})
		assert.NotContains(t, got, "x")
		assert.NotContains(t, got, "y")
	})

	t.Run("seed outside the graph still included", func(t *testing.T) {
		got := g.Reachable([]string{"zzz"})
		assert.Equal(t, map[string]bool{"zzz": true}, got)
	})
}
