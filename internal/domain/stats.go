package domain

// IndexStats summarizes what the index currently holds.
type IndexStats struct {
	Documents         int64                 `json:"documents"`
	Chunks            int64                 `json:"chunks"`
	PendingEmbeddings int64                 `json:"pending_embeddings"`
	ByContentType     map[ContentType]int64 `json:"by_content_type"`
}
