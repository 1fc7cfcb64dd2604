//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/etvincen/boredapi/internal/api/handlers"
	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/embedding"
	"github.com/etvincen/boredapi/internal/repository"
	"github.com/etvincen/boredapi/internal/server"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/etvincen/boredapi/internal/storage"
	"github.com/etvincen/boredapi/internal/suggest"
	"github.com/etvincen/boredapi/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Index        *service.IndexManager
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     s3C.AccessKey,
		SecretAccessKey: s3C.SecretKey,
		Bucket:          "test-snapshots",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.startServer(s3Client, port)
	return env
}

// Cleanup stops the server and removes built binaries. Containers and the
// pool are released by the test's own cleanup.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// startServer wires the same components as boredapid serve, with the
// deterministic hash embedder.
func (e *E2ETestEnv) startServer(store service.SnapshotStore, port int) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	embedder := embedding.New(embedding.HashFactory(domain.EmbeddingDimensions),
		embedding.WithDimensions(domain.EmbeddingDimensions),
		embedding.WithLogger(logger),
	)
	if err := embedder.Init(e.Ctx); err != nil {
		e.T.Fatalf("failed to init embedder: %v", err)
	}

	suggester := suggest.NewTrie()
	index := service.NewIndexManager(
		repository.NewDocumentRepository(e.Pool),
		repository.NewChunkRepository(e.Pool),
		repository.NewSnapshotRepository(e.Pool),
		repository.NewTxRunner(e.Pool),
		service.WithSuggester(suggester),
		service.WithSnapshotStore(store),
		service.WithReembedder(embedder),
		service.WithIndexLogger(logger),
	)
	e.Index = index

	ingestor, err := service.NewIngestor(index, service.NewChunker(service.DefaultChunkConfig()), embedder,
		service.WithIngestWorkers(2),
		service.WithIngestLogger(logger),
	)
	if err != nil {
		e.T.Fatalf("failed to create ingestor: %v", err)
	}

	searchSvc := service.NewSearchService(repository.NewSearchRepository(e.Pool), embedder, suggester,
		service.DefaultSearchConfig(), service.WithSearchLogger(logger))

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		DocumentHandler: handlers.NewDocumentHandler(index, ingestor),
		BackupHandler:   handlers.NewBackupHandler(index),
		HealthHandler:   handlers.NewHealthHandler(e.Pool),
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, e.ServerURL, 10*time.Second)

	e.ServerCloser = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		ingestor.Release()
		embedder.Close()
	}
}

// BuildBinaries builds the boredapi and boredapid binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "boredapi-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"boredapi", "boredapid"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the boredapi CLI against the test server
func (e *E2ETestEnv) RunCLI(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "boredapi"), args...)
	cmd.Dir = e.BinaryDir
	if input != "" {
		cmd.Stdin = bytes.NewReader([]byte(input))
	}
	cmd.Env = append(os.Environ(), fmt.Sprintf("BOREDAPI_API_URL=%s", e.ServerURL))
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// HTTPError carries the status of a failed request
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Get performs a GET request and decodes the body into out
func (e *E2ETestEnv) Get(path string, out interface{}) error {
	return e.doRequest(http.MethodGet, path, nil, out)
}

// Post performs a POST request and decodes the body into out
func (e *E2ETestEnv) Post(path string, body, out interface{}) error {
	return e.doRequest(http.MethodPost, path, body, out)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) error {
	return e.doRequest(http.MethodDelete, path, nil, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Decode unwraps a {"data": ...} envelope into out
func (r *APIResponse) Decode(out interface{}) error {
	return json.Unmarshal(r.Data, out)
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// page builds an ingestible document
func page(id, title, body string, updatedAt time.Time) domain.ContentDocument {
	return domain.ContentDocument{
		ID:          id,
		URL:         "https://example.org/" + id,
		Title:       title,
		Body:        body,
		ContentType: domain.ContentTypeArticle,
		Hierarchy:   domain.Hierarchy{Breadcrumb: []string{"Accueil"}, Depth: 1},
		UpdatedAt:   updatedAt,
	}
}
