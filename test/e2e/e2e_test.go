//go:build e2e

package e2e

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/etvincen/boredapi/internal/api/handlers"
	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var v1 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func corpus() []domain.ContentDocument {
	return []domain.ContentDocument{
		page("obseques", "Obsèques", "Organiser des obsèques demande du temps. Les frais d'obsèques varient selon la cérémonie.", v1),
		page("cremation", "Crémation", "La crémation est une alternative à l'inhumation. L'urne est remise à la famille.", v1),
		page("contrat", "Contrat obsèques", "Un contrat obsèques finance vos funérailles à l'avance.", v1),
	}
}

func ingest(t *testing.T, env *E2ETestEnv, docs []domain.ContentDocument) service.IngestReport {
	t.Helper()
	var resp APIResponse
	require.NoError(t, env.Post("/documents", docs, &resp))
	var report service.IngestReport
	require.NoError(t, resp.Decode(&report))
	return report
}

func statusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

func TestE2E_IngestAndSearch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	report := ingest(t, env, corpus())
	require.Equal(t, 3, report.Created)
	assert.Zero(t, report.Pending)

	t.Run("keyword search ranks by lexical score", func(t *testing.T) {
		var resp handlers.SearchResponse
		require.NoError(t, env.Get("/search?q=obs%C3%A8ques&mode=keyword", &resp))

		require.NotEmpty(t, resp.Results)
		assert.Equal(t, "keyword", resp.Mode)
		assert.InDelta(t, 1.0, resp.Results[0].FusedScore, 1e-9)
		for _, r := range resp.Results {
			assert.NotEqual(t, "cremation", r.DocumentID)
		}
	})

	t.Run("hybrid search returns each document once", func(t *testing.T) {
		var resp handlers.SearchResponse
		require.NoError(t, env.Get("/search?q=frais%20obs%C3%A8ques&size=5", &resp))

		assert.Equal(t, "hybrid", resp.Mode)
		seen := map[string]bool{}
		for i, r := range resp.Results {
			assert.False(t, seen[r.DocumentID], "duplicate %s", r.DocumentID)
			seen[r.DocumentID] = true
			if i > 0 {
				assert.LessOrEqual(t, r.FusedScore, resp.Results[i-1].FusedScore)
			}
		}
	})

	t.Run("content type filter", func(t *testing.T) {
		var resp handlers.SearchResponse
		require.NoError(t, env.Get("/search?q=obs%C3%A8ques&content_type=faq", &resp))

		assert.Empty(t, resp.Results)
		assert.Zero(t, resp.Total)
	})

	t.Run("invalid requests are rejected", func(t *testing.T) {
		for _, path := range []string{"/search", "/search?q=x&size=51", "/search?q=x&mode=fuzzy", "/search?q=x&lexical_weight=0.9&vector_weight=0.9"} {
			err := env.Get(path, nil)
			assert.Equal(t, http.StatusBadRequest, statusOf(err), path)
		}
	})

	t.Run("suggestions ignore case and accents", func(t *testing.T) {
		var resp handlers.SuggestResponse
		require.NoError(t, env.Get("/suggest?q=OBSE", &resp))

		assert.ElementsMatch(t, []string{"Obsèques"}, resp.Suggestions)
	})

	t.Run("get and stats", func(t *testing.T) {
		var resp APIResponse
		require.NoError(t, env.Get("/documents/cremation", &resp))
		var doc domain.ContentDocument
		require.NoError(t, resp.Decode(&doc))
		assert.Equal(t, "Crémation", doc.Title)
		assert.Equal(t, domain.EmbeddingStatusReady, doc.EmbeddingStatus)

		require.NoError(t, env.Get("/stats", &resp))
		var stats domain.IndexStats
		require.NoError(t, resp.Decode(&stats))
		assert.EqualValues(t, 3, stats.Documents)
		assert.Zero(t, stats.PendingEmbeddings)
	})
}

func TestE2E_Reingestion(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingest(t, env, corpus())

	t.Run("same version is unchanged", func(t *testing.T) {
		report := ingest(t, env, corpus())
		assert.Equal(t, 3, report.Unchanged)
	})

	t.Run("newer version replaces the document", func(t *testing.T) {
		updated := page("cremation", "Crémation et dispersion", "La dispersion des cendres est encadrée par la loi.", v1.Add(time.Hour))
		report := ingest(t, env, []domain.ContentDocument{updated})
		assert.Equal(t, 1, report.Updated)

		var resp handlers.SearchResponse
		require.NoError(t, env.Get("/search?q=dispersion&mode=keyword", &resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "cremation", resp.Results[0].DocumentID)

		require.NoError(t, env.Get("/search?q=urne&mode=keyword", &resp))
		assert.Empty(t, resp.Results)
	})

	t.Run("older version is ignored", func(t *testing.T) {
		stale := page("cremation", "Crémation", "Ancien texte.", v1)
		report := ingest(t, env, []domain.ContentDocument{stale})
		assert.Equal(t, 1, report.Unchanged)
	})

	t.Run("delete removes the document", func(t *testing.T) {
		require.NoError(t, env.Delete("/documents/contrat"))

		err := env.Get("/documents/contrat", nil)
		assert.Equal(t, http.StatusNotFound, statusOf(err))
		err = env.Delete("/documents/contrat")
		assert.Equal(t, http.StatusNotFound, statusOf(err))
	})
}

func TestE2E_BackupRestore(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingest(t, env, corpus())

	var resp APIResponse
	require.NoError(t, env.Post("/backups", nil, &resp))
	var handle struct {
		Handle string `json:"handle"`
	}
	require.NoError(t, resp.Decode(&handle))
	require.True(t, strings.HasPrefix(handle.Handle, "snapshots/"))

	require.NoError(t, env.Delete("/documents/obseques"))
	ingest(t, env, []domain.ContentDocument{page("nouveau", "Nouveau", "Une page ajoutée après la sauvegarde.", v1)})

	require.NoError(t, env.Post("/backups/restore", map[string]string{"handle": handle.Handle}, nil))

	var search handlers.SearchResponse
	require.NoError(t, env.Get("/search?q=obs%C3%A8ques&mode=keyword", &search))
	assert.NotEmpty(t, search.Results)

	err := env.Get("/documents/nouveau", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	var suggestions handlers.SuggestResponse
	require.NoError(t, env.Get("/suggest?q=nou", &suggestions))
	assert.Empty(t, suggestions.Suggestions)

	t.Run("unknown handle", func(t *testing.T) {
		err := env.Post("/backups/restore", map[string]string{"handle": "snapshots/missing.jsonl.gz"}, nil)
		assert.Equal(t, http.StatusNotFound, statusOf(err))
	})
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	input := `[{"id":"obseques","url":"https://example.org/obseques","title":"Obsèques","body":"Organiser des obsèques.","content_type":"article","hierarchy":{"breadcrumb":["Accueil"],"depth":1},"statistics":{},"updated_at":"2026-01-10T08:00:00Z"}]`
	out, err := env.RunCLI(input, "ingest")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 created")

	out, err = env.RunCLI("", "search", "--mode", "keyword", "obsèques")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Obsèques")

	out, err = env.RunCLI("", "suggest", "obs")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Obsèques")

	out, err = env.RunCLI("", "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Documents: 1")
}
