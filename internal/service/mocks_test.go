package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/suggest"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Get(ctx context.Context, id string) (*domain.ContentDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentDocument), args.Error(1)
}

func (m *MockDocumentRepository) GetVersion(ctx context.Context, id string) (time.Time, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockDocumentRepository) LockVersion(ctx context.Context, id string) (time.Time, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockDocumentRepository) Upsert(ctx context.Context, doc *domain.ContentDocument) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) Restore(ctx context.Context, entry *domain.IndexEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) ListTitles(ctx context.Context) ([]suggest.Entry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]suggest.Entry), args.Error(1)
}

func (m *MockDocumentRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]*domain.ContentDocument, error) {
	args := m.Called(ctx, limit, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ContentDocument), args.Error(1)
}

func (m *MockDocumentRepository) IncrementEmbeddingAttempts(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkEmbeddingReady(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, updatedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) Stats(ctx context.Context) (*domain.IndexStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexStats), args.Error(1)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceChunks(ctx context.Context, documentID, title string, chunks []domain.Chunk) error {
	args := m.Called(ctx, documentID, title, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockChunkRepository) UpdateEmbeddings(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

// MockSnapshotRepository is a mock implementation of SnapshotRepositoryInterface
type MockSnapshotRepository struct {
	mock.Mock
	entries []domain.IndexEntry
}

func (m *MockSnapshotRepository) Export(ctx context.Context, fn func(entry *domain.IndexEntry) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	for i := range m.entries {
		if err := fn(&m.entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// memorySnapshotStore keeps snapshots in a map.
type memorySnapshotStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{objects: make(map[string][]byte)}
}

func (s *memorySnapshotStore) Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memorySnapshotStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// MockEmbedder is a mock implementation of EmbedderInterface
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockSearchRepository is a mock implementation of SearchRepositoryInterface
type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) SearchLexical(ctx context.Context, query string, contentType domain.ContentType, limit int) ([]ChunkHit, error) {
	args := m.Called(ctx, query, contentType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChunkHit), args.Error(1)
}

func (m *MockSearchRepository) SearchVector(ctx context.Context, embedding []float32, contentType domain.ContentType, limit int) ([]ChunkHit, error) {
	args := m.Called(ctx, embedding, contentType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChunkHit), args.Error(1)
}

// MockSuggester is a mock implementation of suggest.Suggester
type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) Add(ctx context.Context, id, title string) error {
	args := m.Called(ctx, id, title)
	return args.Error(0)
}

func (m *MockSuggester) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSuggester) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	args := m.Called(ctx, prefix, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSuggester) Rebuild(ctx context.Context, entries []suggest.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

func unitVector(hot int) []float32 {
	v := make([]float32, domain.EmbeddingDimensions)
	v[hot%domain.EmbeddingDimensions] = 1
	return v
}

func testDocument(id, title, body string, updatedAt time.Time) domain.ContentDocument {
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
