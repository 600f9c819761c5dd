package vectorstore

import (
	"testing"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewStoreChromem(t *testing.T) {
	cfg := config.Load()
	cfg.VectorStore.Provider = "chromem"
	cfg.VectorStore.Chromem.Path = t.TempDir()
	cfg.VectorStore.Chromem.VectorSize = 64

	store, err := NewStore(cfg, &hashEmbedder{dim: 64}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*ChromemStore)
	assert.True(t, ok)
}

func TestNewStoreUnknownProvider(t *testing.T) {
	cfg := config.Load()
	cfg.VectorStore.Provider = "pinecone"

	_, err := NewStore(cfg, &hashEmbedder{dim: 64}, zap.NewNop())
	assert.Error(t, err)
}
