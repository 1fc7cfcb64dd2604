package domain

// EmbeddingDimensions is the fixed vector size stored in the index.
const EmbeddingDimensions = 384

// Chunk is a sentence-aligned slice of a document body, the unit of embedding.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
}
