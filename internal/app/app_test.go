package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bindflow/internal/testutil"
)

const appPage = `{
	"entities": [
		{"name": "Api1", "kind": "action", "config": {"user": "alice"}},
		{"name": "Text1", "kind": "widget", "config": {"text": "Hello {{Api1.user}}"}}
	]
}`

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"page only", Config{PagePath: "page.json"}, ""},
		{"serve only", Config{ServeAddr: ":8090"}, ""},
		{"neither page nor serve", Config{}, "page path is required"},
		{"watch without page", Config{ServeAddr: ":8090", Watch: true}, "watch mode requires a page path"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestAppRun(t *testing.T) {
	t.Run("evaluates the page and prints the tree", func(t *testing.T) {
		path := testutil.WritePage(t, appPage)
		cfg, err := NewConfig(Config{PagePath: path, LogFormat: "text", LogLevel: "warn"})
		require.NoError(t, err)

		out := &bytes.Buffer{}
		logs := &testutil.SafeBuffer{}
		a, err := NewApp(out, logs, cfg)
		require.NoError(t, err)
		require.NoError(t, a.Run(context.Background()))

		var tree struct {
			Text1 struct {
				Text string `json:"text"`
			} `json:"Text1"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &tree))
		assert.Equal(t, "Hello alice", tree.Text1.Text)
	})

	t.Run("binding failures are logged, not fatal", func(t *testing.T) {
		path := testutil.WritePage(t, `{
			"entities": [
				{"name": "Text1", "kind": "widget", "config": {"text": "{{Missing.value}}"}}
			]
		}`)
		cfg, err := NewConfig(Config{PagePath: path, LogFormat: "text", LogLevel: "warn"})
		require.NoError(t, err)

		out := &bytes.Buffer{}
		logs := &testutil.SafeBuffer{}
		a, err := NewApp(out, logs, cfg)
		require.NoError(t, err)
		require.NoError(t, a.Run(context.Background()))

		assert.Contains(t, logs.String(), "Binding failed.")
		assert.Contains(t, logs.String(), "Text1.text")
	})

	t.Run("missing page file fails construction", func(t *testing.T) {
		cfg, err := NewConfig(Config{PagePath: "does/not/exist.json", LogFormat: "text", LogLevel: "warn"})
		require.NoError(t, err)

		_, err = NewApp(&bytes.Buffer{}, &testutil.SafeBuffer{}, cfg)
		assert.ErrorContains(t, err, "loading page")
	})

	t.Run("cycle in the page fails the run", func(t *testing.T) {
		path := testutil.WritePage(t, `{
			"entities": [
				{"name": "A", "kind": "widget", "config": {"x": "{{B.y}}"}},
				{"name": "B", "kind": "widget", "config": {"y": "{{A.x}}"}}
			]
		}`)
		cfg, err := NewConfig(Config{PagePath: path, LogFormat: "text", LogLevel: "warn"})
		require.NoError(t, err)

		a, err := NewApp(&bytes.Buffer{}, &testutil.SafeBuffer{}, cfg)
		require.NoError(t, err)
		assert.ErrorContains(t, a.Run(context.Background()), "cyclic dependency")
	})
}
