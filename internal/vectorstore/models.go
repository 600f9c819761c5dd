package vectorstore

// Document represents a corpus passage to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the passage.
	ID string

	// Content is the passage text.
	Content string

	// Metadata contains key-value pairs for filtering.
	// Corpus passages carry: competition_id, section, source.
	Metadata map[string]interface{}

	// Collection is the target collection name for this passage.
	// If empty, the store's default collection is used.
	Collection string
}

// SearchResult represents a similarity search result.
type SearchResult struct {
	// ID is the passage identifier.
	ID string

	// Content is the passage text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the passage metadata.
	Metadata map[string]interface{}
}
