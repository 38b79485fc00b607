package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/pathref"
)

const workerPage = `{
	"entities": [
		{"name": "Api1", "kind": "action", "config": {"user": "alice"}},
		{"name": "Text1", "kind": "widget", "config": {"text": "Hello {{Api1.user}}"}}
	]
}`

func mustPage(t *testing.T, doc string) *entity.Page {
	t.Helper()
	page, err := entity.DecodePage(strings.NewReader(doc))
	require.NoError(t, err)
	return page
}

func startWorker(t *testing.T) *Worker {
	t.Helper()
	w := New()
	w.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Shutdown(ctx)
	})
	return w
}

func TestWorker(t *testing.T) {
	ctx := context.Background()

	t.Run("evaluates and updates serially", func(t *testing.T) {
		w := startWorker(t)

		res, err := w.EvalTree(ctx, mustPage(t, workerPage))
		require.NoError(t, err)
		v, err := res.Tree.Get(pathref.MustParse("Text1.text"))
		require.NoError(t, err)
		assert.Equal(t, "Hello alice", v.AsString())

		res, err = w.UpdateTree(ctx, mustPage(t, `{
			"entities": [
				{"name": "Api1", "kind": "action", "config": {"user": "bob"}},
				{"name": "Text1", "kind": "widget", "config": {"text": "Hello {{Api1.user}}"}}
			]
		}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"Api1.user", "Text1.text"}, res.UpdatedPaths)
	})

	t.Run("tree reflects the last committed pass", func(t *testing.T) {
		w := startWorker(t)

		tr, err := w.Tree(ctx)
		require.NoError(t, err)
		assert.Empty(t, tr.Names())

		_, err = w.EvalTree(ctx, mustPage(t, workerPage))
		require.NoError(t, err)

		tr, err = w.Tree(ctx)
		require.NoError(t, err)
		v, err := tr.Get(pathref.MustParse("Text1.text"))
		require.NoError(t, err)
		assert.Equal(t, "Hello alice", v.AsString())
	})

	t.Run("restart discards evaluator state", func(t *testing.T) {
		w := startWorker(t)

		_, err := w.EvalTree(ctx, mustPage(t, workerPage))
		require.NoError(t, err)
		require.NoError(t, w.Restart(ctx))

		// After a restart an update is a full pass again: every dynamic
		// path is reported, not just a diff against discarded state.
		res, err := w.UpdateTree(ctx, mustPage(t, workerPage))
		require.NoError(t, err)
		assert.Equal(t, []string{"Text1.text"}, res.UpdatedPaths)
	})

	t.Run("shutdown rejects further requests", func(t *testing.T) {
		w := New()
		w.Start(context.Background())
		require.NoError(t, w.Shutdown(ctx))

		_, err := w.EvalTree(ctx, mustPage(t, workerPage))
		assert.ErrorIs(t, err, ErrStopped)
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		w := New()
		w.Start(context.Background())
		require.NoError(t, w.Shutdown(ctx))
		require.NoError(t, w.Shutdown(ctx))
	})

	t.Run("cancelled submission returns the context error", func(t *testing.T) {
		w := startWorker(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := w.EvalTree(cancelled, mustPage(t, workerPage))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
