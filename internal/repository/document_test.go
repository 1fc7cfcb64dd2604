//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var v1 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	return testutil.NewTestPool(ctx, t, testutil.NewPostgresContainer(ctx, t))
}

func testDoc(id, title, body string, updatedAt time.Time) *domain.ContentDocument {
	return &domain.ContentDocument{
		ID:          id,
		URL:         "https://example.org/" + id,
		Title:       title,
		Body:        body,
		ContentType: domain.ContentTypeArticle,
		Hierarchy:   domain.Hierarchy{Breadcrumb: []string{"Accueil"}, Depth: 1},
		Statistics:  domain.Statistics{WordCount: 3, SentenceCount: 1},
		UpdatedAt:   updatedAt,
	}
}

// vec returns a unit vector along axis hot.
func vec(hot int) []float32 {
	v := make([]float32, domain.EmbeddingDimensions)
	v[hot] = 1
	return v
}

func storeDoc(ctx context.Context, t *testing.T, pool *pgxpool.Pool, doc *domain.ContentDocument, chunks ...domain.Chunk) {
	t.Helper()
	applied, err := NewDocumentRepository(pool).Upsert(ctx, doc)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, NewChunkRepository(pool).ReplaceChunks(ctx, doc.ID, doc.Title, chunks))
}

func TestDocumentRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	doc := testDoc("42", "Obsèques", "Organiser des obsèques.", v1)
	doc.Media = []domain.MediaReference{{Type: "image", URL: "https://example.org/a.png"}}

	applied, err := repo.Upsert(ctx, doc)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Obsèques", got.Title)
	assert.Equal(t, []string{"Accueil"}, got.Hierarchy.Breadcrumb)
	assert.Equal(t, 3, got.Statistics.WordCount)
	assert.Len(t, got.Media, 1)
	assert.True(t, v1.Equal(got.UpdatedAt))

	t.Run("same version is not applied", func(t *testing.T) {
		applied, err := repo.Upsert(ctx, testDoc("42", "Autre", "Autre.", v1))
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("older version is not applied", func(t *testing.T) {
		applied, err := repo.Upsert(ctx, testDoc("42", "Ancien", "Ancien.", v1.Add(-time.Hour)))
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := repo.Get(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "Obsèques", got.Title)
	})

	t.Run("newer version replaces the row", func(t *testing.T) {
		applied, err := repo.Upsert(ctx, testDoc("42", "Obsèques civiles", "Nouveau.", v1.Add(time.Hour)))
		require.NoError(t, err)
		assert.True(t, applied)

		version, err := repo.GetVersion(ctx, "42")
		require.NoError(t, err)
		assert.True(t, v1.Add(time.Hour).Equal(version))
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		_, err = repo.GetVersion(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}

func TestDocumentRepository_DeleteCascadesToChunks(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)
	chunks := NewChunkRepository(pool)

	storeDoc(ctx, t, pool, testDoc("42", "Obsèques", "Une phrase.", v1),
		domain.Chunk{DocumentID: "42", Index: 0, Text: "Une phrase.", TokenCount: 2, Embedding: vec(0)})

	require.NoError(t, repo.Delete(ctx, "42"))

	remaining, err := chunks.ListByDocument(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.ErrorIs(t, repo.Delete(ctx, "42"), domain.ErrDocumentNotFound)
}

func TestDocumentRepository_PendingEmbeddings(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	pending := testDoc("p", "En attente", "Sans vecteur.", v1)
	pending.EmbeddingStatus = domain.EmbeddingStatusPending
	storeDoc(ctx, t, pool, pending, domain.Chunk{DocumentID: "p", Index: 0, Text: "Sans vecteur.", TokenCount: 2})
	storeDoc(ctx, t, pool, testDoc("r", "Prêt", "Avec vecteur.", v1),
		domain.Chunk{DocumentID: "r", Index: 0, Text: "Avec vecteur.", TokenCount: 2, Embedding: vec(1)})

	docs, err := repo.ListPending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p", docs[0].ID)

	t.Run("attempts past the limit are skipped", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.IncrementEmbeddingAttempts(ctx, "p"))
		}
		docs, err := repo.ListPending(ctx, 10, 3)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("ready only at the stored version", func(t *testing.T) {
		ok, err := repo.MarkEmbeddingReady(ctx, "p", v1.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.MarkEmbeddingReady(ctx, "p", v1)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, stats.Documents)
		assert.EqualValues(t, 2, stats.Chunks)
		assert.Zero(t, stats.PendingEmbeddings)
		assert.EqualValues(t, 2, stats.ByContentType[domain.ContentTypeArticle])
	})

	t.Run("titles", func(t *testing.T) {
		entries, err := repo.ListTitles(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestChunkRepository_Embeddings(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	chunks := NewChunkRepository(pool)

	storeDoc(ctx, t, pool, testDoc("42", "Obsèques", "Une. Deux.", v1),
		domain.Chunk{DocumentID: "42", Index: 0, Text: "Une.", TokenCount: 1},
		domain.Chunk{DocumentID: "42", Index: 1, Text: "Deux.", TokenCount: 1},
	)

	got, err := chunks.ListByDocument(ctx, "42")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Embedding)

	require.NoError(t, chunks.UpdateEmbeddings(ctx, "42", []domain.Chunk{
		{Index: 0, Embedding: vec(0)},
		{Index: 1, Embedding: vec(1)},
	}))

	got, err = chunks.ListByDocument(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, vec(0), got[0].Embedding)
	assert.Equal(t, vec(1), got[1].Embedding)

	err = chunks.UpdateEmbeddings(ctx, "42", []domain.Chunk{{Index: 7, Embedding: vec(2)}})
	assert.Error(t, err)
}
