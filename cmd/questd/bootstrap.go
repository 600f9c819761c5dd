package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/classifier"
	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/corpus"
	"github.com/fyrsmithlabs/questd/internal/embeddings"
	"github.com/fyrsmithlabs/questd/internal/engine"
	"github.com/fyrsmithlabs/questd/internal/executor"
	"github.com/fyrsmithlabs/questd/internal/llm"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/respcache"
	"github.com/fyrsmithlabs/questd/internal/router"
	"github.com/fyrsmithlabs/questd/internal/telemetry"
	"github.com/fyrsmithlabs/questd/internal/vectorstore"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     vectorstore.Store
	engine    *engine.Engine
}

// newApp loads configuration and builds the full dependency graph:
// logger, telemetry, embedder, vector store, LLM client, corpus manager,
// agent registry, router, executor, cache, engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	embedSvc, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}

	store, err := vectorstore.NewStore(cfg, embedSvc, logger.Underlying())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	llmClient, err := llm.NewAnthropicClient(cfg.LLM)
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing llm client: %w", err)
	}

	corpusMgr := corpus.NewManager(store, corpus.NewFileCollector(cfg.Corpus.DataDir), cfg.Corpus, logger)

	registry, err := agent.DefaultRegistry(llmClient, corpusMgr, cfg.Corpus.SearchK)
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("building agent registry: %w", err)
	}

	var arbiter router.Arbiter
	if cfg.Router.ArbiterEnabled {
		arbiter = router.NewLLMArbiter(llmClient)
	}
	rt := router.New(registry, arbiter, cfg.Router, logger)

	exec := executor.New(registry, cfg.Executor, logger, executor.NewMetrics())

	var cache *respcache.Cache
	if cfg.Cache.Enabled {
		cache = respcache.New(cfg.Cache, respcache.NewMetrics())
	}

	eng := engine.New(cache, corpusMgr, classifier.New(), rt, exec, logger)

	logger.Info(ctx, "pipeline initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Int("agents", registry.Len()),
		zap.Bool("arbiter_enabled", cfg.Router.ArbiterEnabled),
		zap.Bool("cache_enabled", cfg.Cache.Enabled))

	return &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		store:     store,
		engine:    eng,
	}, nil
}

// Close releases the app's resources. Best-effort; errors are logged.
func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.logger.Warn(ctx, "closing vector store", zap.Error(err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "shutting down telemetry", zap.Error(err))
	}
	_ = a.logger.Sync()
}
