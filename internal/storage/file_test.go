package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("snapshot bytes")
	require.NoError(t, store.Put(ctx, "snapshots/a.jsonl.gz", bytes.NewReader(data), int64(len(data))))

	rc, err := store.Get(ctx, "snapshots/a.jsonl.gz")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "s.gz", bytes.NewReader([]byte("one")), 3))
	require.NoError(t, store.Put(ctx, "s.gz", bytes.NewReader([]byte("two")), 3))

	got, err := os.ReadFile(filepath.Join(dir, "s.gz"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStore_GetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "snapshots/missing.jsonl.gz")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "/etc/passwd", "a/../../b"} {
		_, err := store.Get(context.Background(), key)
		assert.True(t, domain.IsCode(err, domain.ErrCodeMalformedInput), key)
	}
}
