package domain

import (
	"strings"
	"time"
)

// ContentType classifies a scraped page
type ContentType string

const (
	ContentTypeArticle ContentType = "article"
	ContentTypeFAQ     ContentType = "faq"
	ContentTypeProduct ContentType = "product"
	ContentTypeForm    ContentType = "form"
)

// ContentTypes lists the known content types in display order.
func ContentTypes() []ContentType {
	return []ContentType{ContentTypeArticle, ContentTypeFAQ, ContentTypeProduct, ContentTypeForm}
}

// IsValid returns true if the content type is one of the known values
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeArticle, ContentTypeFAQ, ContentTypeProduct, ContentTypeForm:
		return true
	}
	return false
}

// EmbeddingStatus tracks whether a document's chunks carry embeddings
type EmbeddingStatus string

const (
	EmbeddingStatusReady   EmbeddingStatus = "ready"
	EmbeddingStatusPending EmbeddingStatus = "pending"
)

// Hierarchy places a document in the crawled site tree.
type Hierarchy struct {
	ParentID   string   `json:"parent_id,omitempty"`
	Breadcrumb []string `json:"breadcrumb"`
	Depth      int      `json:"depth"`
}

// MediaReference is an image, video or file linked from a document.
type MediaReference struct {
	Type     string            `json:"type"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Statistics are computed by the crawler and stored verbatim.
type Statistics struct {
	WordCount     int `json:"word_count"`
	SentenceCount int `json:"sentence_count"`
	SectionCount  int `json:"section_count"`
	InternalLinks int `json:"internal_links"`
	ExternalLinks int `json:"external_links"`
	ImageCount    int `json:"image_count"`
}

// ContentDocument is one scraped page as delivered by the crawler.
type ContentDocument struct {
	ID              string           `json:"id"`
	URL             string           `json:"url"`
	Title           string           `json:"title"`
	Body            string           `json:"body"`
	BodyHTML        string           `json:"body_html,omitempty"`
	ContentType     ContentType      `json:"content_type"`
	Hierarchy       Hierarchy        `json:"hierarchy"`
	Media           []MediaReference `json:"media,omitempty"`
	Statistics      Statistics       `json:"statistics"`
	UpdatedAt       time.Time        `json:"updated_at"`
	EmbeddingStatus EmbeddingStatus  `json:"embedding_status,omitempty"`
}

// Validate checks the invariants a document must satisfy before indexing.
// Body emptiness is checked by the chunker after normalization.
func (d *ContentDocument) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrMissingDocumentID
	}
	if !d.ContentType.IsValid() {
		return NewDomainErrorWithCause(ErrCodeMalformedInput, "invalid content type", ErrInvalidContentType)
	}
	if d.Hierarchy.Depth != len(d.Hierarchy.Breadcrumb) {
		return NewMalformedInput("hierarchy depth does not match breadcrumb length")
	}
	if d.UpdatedAt.IsZero() {
		return NewMalformedInput("updated_at is required")
	}
	if strings.TrimSpace(d.Body) == "" && strings.TrimSpace(d.BodyHTML) == "" {
		return ErrEmptyBody
	}
	return nil
}

// IndexEntry is the persisted unit: a document and its derived chunks.
type IndexEntry struct {
	Document ContentDocument
	Chunks   []Chunk

	// EmbeddingAttempts and IndexedAt are the pending-retry state kept
	// across backup and restore. A zero IndexedAt means now.
	EmbeddingAttempts int
	IndexedAt         time.Time
}

// HasEmbeddings returns true when every chunk carries a vector.
func (e *IndexEntry) HasEmbeddings() bool {
	if len(e.Chunks) == 0 {
		return false
	}
	for _, c := range e.Chunks {
		if len(c.Embedding) == 0 {
			return false
		}
	}
	return true
}
