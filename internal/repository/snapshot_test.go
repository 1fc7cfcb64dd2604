//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRepository_Export(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	storeDoc(ctx, t, pool, testDoc("b", "Deux", "Une. Deux.", v1),
		domain.Chunk{DocumentID: "b", Index: 0, Text: "Une.", TokenCount: 1, Embedding: vec(0)},
		domain.Chunk{DocumentID: "b", Index: 1, Text: "Deux.", TokenCount: 1, Embedding: vec(1)},
	)
	pending := testDoc("a", "Un", "Seul.", v1)
	pending.EmbeddingStatus = domain.EmbeddingStatusPending
	storeDoc(ctx, t, pool, pending, domain.Chunk{DocumentID: "a", Index: 0, Text: "Seul.", TokenCount: 1})

	var entries []domain.IndexEntry
	err := NewSnapshotRepository(pool).Export(ctx, func(entry *domain.IndexEntry) error {
		entries = append(entries, *entry)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Document.ID)
	assert.Equal(t, domain.EmbeddingStatusPending, entries[0].Document.EmbeddingStatus)
	require.Len(t, entries[0].Chunks, 1)
	assert.Nil(t, entries[0].Chunks[0].Embedding)

	assert.Equal(t, "b", entries[1].Document.ID)
	require.Len(t, entries[1].Chunks, 2)
	assert.Equal(t, vec(1), entries[1].Chunks[1].Embedding)
}

func TestTxRunner_RollsBack(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	err := NewTxRunner(pool).WithTx(ctx, func(repos service.TxRepositories) error {
		if _, err := repos.Documents().Upsert(ctx, testDoc("42", "Obsèques", "Texte.", v1)); err != nil {
			return err
		}
		return domain.NewBackendUnavailable("boom", nil)
	})
	require.Error(t, err)

	_, err = NewDocumentRepository(pool).Get(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_Restore_KeepsRetryState(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	docs := NewDocumentRepository(pool)

	pending := testDoc("p", "Crémation", "Texte.", v1)
	pending.EmbeddingStatus = domain.EmbeddingStatusPending
	storeDoc(ctx, t, pool, pending, domain.Chunk{DocumentID: "p", Index: 0, Text: "Texte.", TokenCount: 1})
	require.NoError(t, docs.IncrementEmbeddingAttempts(ctx, "p"))
	require.NoError(t, docs.IncrementEmbeddingAttempts(ctx, "p"))

	var exported []domain.IndexEntry
	require.NoError(t, NewSnapshotRepository(pool).Export(ctx, func(entry *domain.IndexEntry) error {
		exported = append(exported, *entry)
		return nil
	}))
	require.Len(t, exported, 1)
	assert.Equal(t, 2, exported[0].EmbeddingAttempts)
	require.False(t, exported[0].IndexedAt.IsZero())

	_, err := docs.DeleteAll(ctx)
	require.NoError(t, err)
	require.NoError(t, docs.Restore(ctx, &exported[0]))

	var restored []domain.IndexEntry
	require.NoError(t, NewSnapshotRepository(pool).Export(ctx, func(entry *domain.IndexEntry) error {
		restored = append(restored, *entry)
		return nil
	}))
	require.Len(t, restored, 1)
	assert.Equal(t, 2, restored[0].EmbeddingAttempts)
	assert.WithinDuration(t, exported[0].IndexedAt, restored[0].IndexedAt, time.Microsecond)

	// one attempt left under a budget of three
	listed, err := docs.ListPending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed, err = docs.ListPending(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
