package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/questd/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
//
// The VectorStoreConfig.Provider field selects the implementation:
//   - "chromem" (default): embedded ChromemStore, no external dependencies
//   - "qdrant": QdrantStore, requires an external Qdrant server
//
// Example usage:
//
//	cfg := config.Load()
//	store, err := vectorstore.NewStore(cfg, embedder, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func NewStore(cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			VectorSize: cfg.VectorStore.Chromem.VectorSize,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			VectorSize: uint64(cfg.VectorStore.Qdrant.VectorSize),
		}, embedder)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.VectorStore.Provider)
	}
}
