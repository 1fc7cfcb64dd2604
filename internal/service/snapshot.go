package service

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
)

const (
	snapshotFormat  = "boredapi-snapshot"
	snapshotVersion = 1
	// maxSnapshotLine bounds one encoded document with its chunks and vectors.
	maxSnapshotLine = 64 << 20
)

// ErrCorruptSnapshot wraps every decoding failure.
var ErrCorruptSnapshot = errors.New("snapshot is corrupt")

type snapshotHeader struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

type snapshotRecord struct {
	Document          *domain.ContentDocument `json:"document,omitempty"`
	Chunks            []domain.Chunk          `json:"chunks,omitempty"`
	EmbeddingAttempts int                     `json:"embedding_attempts,omitempty"`
	IndexedAt         *time.Time              `json:"indexed_at,omitempty"`
	// End marks the trailer; a snapshot without it was truncated.
	End       bool `json:"end,omitempty"`
	Documents int  `json:"documents,omitempty"`
}

// SnapshotWriter encodes index entries as gzip-compressed JSON lines: a
// header, one line per document, then a trailer with the document count.
type SnapshotWriter struct {
	gz    *gzip.Writer
	enc   *json.Encoder
	count int
}

func NewSnapshotWriter(w io.Writer, createdAt time.Time) (*SnapshotWriter, error) {
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	sw := &SnapshotWriter{gz: gz, enc: enc}
	header := snapshotHeader{Format: snapshotFormat, Version: snapshotVersion, CreatedAt: createdAt.UTC()}
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write snapshot header: %w", err)
	}
	return sw, nil
}

func (w *SnapshotWriter) Write(entry *domain.IndexEntry) error {
	doc := entry.Document
	rec := snapshotRecord{Document: &doc, Chunks: entry.Chunks, EmbeddingAttempts: entry.EmbeddingAttempts}
	if !entry.IndexedAt.IsZero() {
		indexedAt := entry.IndexedAt.UTC()
		rec.IndexedAt = &indexedAt
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write snapshot entry %s: %w", doc.ID, err)
	}
	w.count++
	return nil
}

// Close writes the trailer and flushes the gzip stream.
func (w *SnapshotWriter) Close() error {
	if err := w.enc.Encode(snapshotRecord{End: true, Documents: w.count}); err != nil {
		return fmt.Errorf("failed to write snapshot trailer: %w", err)
	}
	return w.gz.Close()
}

// ReadSnapshot decodes and validates a whole snapshot. Any error leaves the
// caller with nothing, so a bad snapshot is never half applied.
func ReadSnapshot(r io.Reader) ([]domain.IndexEntry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSnapshotLine)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: missing header", ErrCorruptSnapshot)
	}
	var header snapshotHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("%w: bad header: %v", ErrCorruptSnapshot, err)
	}
	if header.Format != snapshotFormat || header.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported format %q version %d", ErrCorruptSnapshot, header.Format, header.Version)
	}

	var entries []domain.IndexEntry
	seen := make(map[string]struct{})
	ended := false
	for scanner.Scan() {
		if ended {
			return nil, fmt.Errorf("%w: data after trailer", ErrCorruptSnapshot)
		}
		var rec snapshotRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptSnapshot, len(entries)+2, err)
		}
		if rec.End {
			if rec.Documents != len(entries) {
				return nil, fmt.Errorf("%w: trailer counts %d documents, found %d", ErrCorruptSnapshot, rec.Documents, len(entries))
			}
			ended = true
			continue
		}
		if rec.Document == nil {
			return nil, fmt.Errorf("%w: line %d has no document", ErrCorruptSnapshot, len(entries)+2)
		}
		entry, err := validateSnapshotEntry(rec)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[entry.Document.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate document %s", ErrCorruptSnapshot, entry.Document.ID)
		}
		seen[entry.Document.ID] = struct{}{}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !ended {
		return nil, fmt.Errorf("%w: missing trailer", ErrCorruptSnapshot)
	}
	return entries, nil
}

func validateSnapshotEntry(rec snapshotRecord) (domain.IndexEntry, error) {
	doc := *rec.Document
	if err := doc.Validate(); err != nil {
		return domain.IndexEntry{}, fmt.Errorf("%w: document %s: %v", ErrCorruptSnapshot, doc.ID, err)
	}
	for i, c := range rec.Chunks {
		if c.DocumentID != doc.ID || c.Index != i {
			return domain.IndexEntry{}, fmt.Errorf("%w: document %s has misplaced chunk %s/%d", ErrCorruptSnapshot, doc.ID, c.DocumentID, c.Index)
		}
		if len(c.Embedding) != 0 && len(c.Embedding) != domain.EmbeddingDimensions {
			return domain.IndexEntry{}, fmt.Errorf("%w: document %s chunk %d has %d dimensions", ErrCorruptSnapshot, doc.ID, i, len(c.Embedding))
		}
	}
	if rec.EmbeddingAttempts < 0 {
		return domain.IndexEntry{}, fmt.Errorf("%w: document %s has %d embedding attempts", ErrCorruptSnapshot, doc.ID, rec.EmbeddingAttempts)
	}
	entry := domain.IndexEntry{Document: doc, Chunks: rec.Chunks, EmbeddingAttempts: rec.EmbeddingAttempts}
	if rec.IndexedAt != nil {
		entry.IndexedAt = rec.IndexedAt.UTC()
	}
	return entry, nil
}
