package search

// EmbeddingType distinguishes which textual view of a unit an embedding
// was generated from (raw content vs. a short summary).
type EmbeddingType string

const (
	EmbeddingContent EmbeddingType = "content"
	EmbeddingSummary EmbeddingType = "summary"
)

// EmbeddingInfo reports whether a document has an embedding of a given
// type, without returning the vector itself.
type EmbeddingInfo struct {
	DocumentID string
	Type       EmbeddingType
	Present    bool
	Dimension  int
}
