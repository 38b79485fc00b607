// Package testutil provides shared helpers for tests: a goroutine-safe log
// buffer and page fixture loading.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/bindflow/internal/entity"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Page decodes a page document literal, failing the test on error.
func Page(t *testing.T, doc string) *entity.Page {
	t.Helper()
	page, err := entity.DecodePage(strings.NewReader(doc))
	require.NoError(t, err)
	return page
}

// WritePage writes a page document to a temp file and returns its path.
func WritePage(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}
