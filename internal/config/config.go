// Package config provides configuration loading for questd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Thresholds that tune routing and execution (tie-break margin,
// score floor, timeouts, cache TTL) are deliberately configuration rather
// than literals: their correct values depend on the registered agent set.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete questd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	LLM         LLMConfig         `koanf:"llm"`
	Router      RouterConfig      `koanf:"router"`
	Executor    ExecutorConfig    `koanf:"executor"`
	Cache       CacheConfig       `koanf:"cache"`
	Corpus      CorpusConfig      `koanf:"corpus"`
}

// ServerConfig holds HTTP server configuration for serve mode.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Insecure    bool   `koanf:"insecure"`
}

// VectorStoreConfig selects and configures the corpus index backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant" (remote).
	Provider string        `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	VectorSize int    `koanf:"vector_size"`
}

// QdrantConfig configures the remote Qdrant store.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     Secret `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
	VectorSize int    `koanf:"vector_size"`
}

// EmbeddingsConfig configures the embedding provider.
// BaseURL points at a TEI server or any OpenAI-compatible endpoint.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// LLMConfig configures the completion client backing the agents.
type LLMConfig struct {
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	BaseURL    string   `koanf:"base_url"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
	// RateLimit is requests per second; Burst is the limiter burst size.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// RouterConfig holds the hybrid router thresholds.
type RouterConfig struct {
	// TieBreakMargin is the score gap below which two top candidates are
	// considered an ambiguous pair and the semantic arbiter is consulted.
	TieBreakMargin float64 `koanf:"tie_break_margin"`
	// MinScoreFloor is the minimum top score required to route to a scored
	// agent; below it the conversational fallback is selected.
	MinScoreFloor float64 `koanf:"min_score_floor"`
	// CategoryBonus is added when an agent's capability tags include the
	// classified category.
	CategoryBonus float64 `koanf:"category_bonus"`
	// ArbiterEnabled toggles the semantic tie-break call.
	ArbiterEnabled bool `koanf:"arbiter_enabled"`
}

// ExecutorConfig holds orchestration execution limits.
type ExecutorConfig struct {
	// HandlerTimeout bounds a single agent invocation.
	HandlerTimeout Duration `koanf:"handler_timeout"`
	// RequestDeadline bounds the whole orchestration of one query.
	RequestDeadline Duration `koanf:"request_deadline"`
	// MaxParallel limits concurrent agent invocations in ensemble mode.
	MaxParallel int `koanf:"max_parallel"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled    bool     `koanf:"enabled"`
	TTL        Duration `koanf:"ttl"`
	MaxEntries int      `koanf:"max_entries"`
}

// CorpusConfig holds corpus availability settings.
type CorpusConfig struct {
	// Sections are the per-competition corpus sections required before
	// retrieval agents can answer.
	Sections []string `koanf:"sections"`
	// SearchK is the number of passages retrieved per search.
	SearchK int `koanf:"search_k"`
	// CollectionPrefix namespaces corpus collections in the vector store.
	CollectionPrefix string `koanf:"collection_prefix"`
	// DataDir is the local directory the file collector reads sections
	// from: <data_dir>/<competition_id>/<section>.md.
	DataDir string `koanf:"data_dir"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9180
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "questd"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/questd/vectorstore"
	}
	if cfg.VectorStore.Chromem.VectorSize == 0 {
		cfg.VectorStore.Chromem.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.VectorSize == 0 {
		cfg.VectorStore.Qdrant.VectorSize = 384
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.RateLimit == 0 {
		cfg.LLM.RateLimit = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 4
	}

	if cfg.Router.TieBreakMargin == 0 {
		cfg.Router.TieBreakMargin = 0.15
	}
	if cfg.Router.MinScoreFloor == 0 {
		cfg.Router.MinScoreFloor = 0.5
	}
	if cfg.Router.CategoryBonus == 0 {
		cfg.Router.CategoryBonus = 1.0
	}

	if cfg.Executor.HandlerTimeout == 0 {
		cfg.Executor.HandlerTimeout = Duration(90 * time.Second)
	}
	if cfg.Executor.RequestDeadline == 0 {
		cfg.Executor.RequestDeadline = Duration(4 * time.Minute)
	}
	if cfg.Executor.MaxParallel == 0 {
		cfg.Executor.MaxParallel = 4
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(30 * time.Minute)
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 512
	}

	if len(cfg.Corpus.Sections) == 0 {
		cfg.Corpus.Sections = []string{"overview", "data", "evaluation", "notebooks", "discussions"}
	}
	if cfg.Corpus.SearchK == 0 {
		cfg.Corpus.SearchK = 6
	}
	if cfg.Corpus.CollectionPrefix == "" {
		cfg.Corpus.CollectionPrefix = "corpus"
	}
	if cfg.Corpus.DataDir == "" {
		cfg.Corpus.DataDir = "./corpus"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vectorstore provider: %q", c.VectorStore.Provider)
	}
	if c.Router.TieBreakMargin < 0 {
		return fmt.Errorf("router tie_break_margin cannot be negative")
	}
	if c.Router.MinScoreFloor < 0 {
		return fmt.Errorf("router min_score_floor cannot be negative")
	}
	if c.Executor.MaxParallel < 1 {
		return fmt.Errorf("executor max_parallel must be at least 1")
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max_entries must be at least 1")
	}
	if c.Corpus.SearchK < 1 {
		return fmt.Errorf("corpus search_k must be at least 1")
	}
	return nil
}
