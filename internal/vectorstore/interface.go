// Package vectorstore defines the interface for corpus passage storage and
// similarity search, with embedded (chromem-go) and remote (Qdrant)
// implementations.
//
// questd stores competition corpus passages in per-competition collections
// named by the corpus manager. The store is deliberately narrow: add
// passages, search them, inspect collections. Deletion and re-indexing are
// owned by the external collector, not by this engine.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the remote store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special characters, spaces, and path traversal.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionInfo contains metadata about a collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of passages in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for corpus passage storage.
//
// Implementations are transport-agnostic. Writes are idempotent by passage
// ID: re-adding a passage with the same ID is harmless, which keeps
// concurrent corpus population safe without locks.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant gRPC client
type Store interface {
	// AddDocuments embeds and stores passages. Each document's Collection
	// field selects the target collection; all documents in one batch must
	// target the same collection. Returns the stored passage IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SearchInCollection performs similarity search in a collection,
	// returning up to k results ordered by similarity (highest first).
	// Filters match document metadata exactly; only documents matching all
	// conditions are returned.
	SearchInCollection(ctx context.Context, collectionName string, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// CollectionExists checks if a collection exists. Returns an error only
	// if the check operation itself fails.
	CollectionExists(ctx context.Context, collectionName string) (bool, error)

	// CreateCollection creates a collection for vectors of the given size.
	CreateCollection(ctx context.Context, collectionName string, vectorSize int) error

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns collection metadata including point count.
	// Returns ErrCollectionNotFound if the collection doesn't exist.
	GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error)

	// Close releases store resources.
	Close() error
}
