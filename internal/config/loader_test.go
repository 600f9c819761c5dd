package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 384, cfg.VectorStore.Chromem.VectorSize)
	assert.Equal(t, 0.15, cfg.Router.TieBreakMargin)
	assert.Equal(t, 0.5, cfg.Router.MinScoreFloor)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL.Duration())
	assert.Equal(t, []string{"overview", "data", "evaluation", "notebooks", "discussions"}, cfg.Corpus.Sections)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte(`
server:
  port: 9999
router:
  tie_break_margin: 0.25
cache:
  ttl: 5m
  max_entries: 32
vectorstore:
  provider: qdrant
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 0.25, cfg.Router.TieBreakMargin)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Duration())
	assert.Equal(t, 32, cfg.Cache.MaxEntries)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	// Unset fields keep defaults
	assert.Equal(t, 6, cfg.Corpus.SearchK)
}

func TestLoadWithFileRejectsInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1\n"), 0644))

	_, err := LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithFileMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9180, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.VectorStore.Provider = "pinecone" }},
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"negative margin", func(c *Config) { c.Router.TieBreakMargin = -0.1 }},
		{"zero parallel", func(c *Config) { c.Executor.MaxParallel = 0 }},
		{"zero search k", func(c *Config) { c.Corpus.SearchK = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.Equal(t, "", Secret("").String())
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
