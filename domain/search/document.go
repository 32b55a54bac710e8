package search

// Document is the payload-bearing point the VectorStore and BM25 Index
// operate on: a flattened view of a Memory/CodeUnit suitable for storage
// and lexical indexing.
type Document struct {
	ID               string
	Project          string
	Category         string
	Content          string
	Language         string
	FilePath         string
	Tags             []string
	Importance       float64
	LifecycleState   string
	CreatedAtUnix    int64
	UpdatedAtUnix    int64
	AccessCount      int64
	LastAccessedUnix int64
	Vector           []float32
}

// IndexRequest batches points for upsert into the VectorStore.
type IndexRequest struct {
	Collection string
	Documents  []Document
}

// DeleteRequest removes a single point by id from a collection.
type DeleteRequest struct {
	Collection string
	ID         string
}

// Query is a single vector or lexical search request.
type Query struct {
	Collection string
	Vector     []float32
	Text       string
	Filter     Filter
	K          int
}

// Result is one ranked hit, carrying the fused score and component
// sub-scores for transparency.
type Result struct {
	Document    Document
	Score       float64
	VectorScore float64
	BM25Score   float64
}

// Cursor opaquely identifies a position for scroll-based pagination.
type Cursor string

// ScrollPage is one bounded page of a scroll listing.
type ScrollPage struct {
	Documents []Document
	Next      Cursor
}
