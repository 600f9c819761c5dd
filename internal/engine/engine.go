// Package engine is the orchestration facade: the single externally
// visible entry point that sequences cache read, corpus availability,
// classification, routing, execution, and the conditional cache write.
//
// The engine owns no state beyond the request it is processing. Nothing
// below it surfaces an unhandled error: every failure mode inside the
// pipeline degrades into a present, possibly degraded, outcome.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/classifier"
	"github.com/fyrsmithlabs/questd/internal/corpus"
	"github.com/fyrsmithlabs/questd/internal/executor"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/respcache"
	"github.com/fyrsmithlabs/questd/internal/router"
)

var tracer = otel.Tracer("questd/engine")

// ErrEmptyQuery indicates a request with no query text.
var ErrEmptyQuery = errors.New("query text required")

// Outcome is the engine's answer: the executor outcome plus request
// diagnostics.
type Outcome struct {
	executor.Outcome

	// CacheHit is true when the answer was served from the response cache
	// and classification, routing, and execution were skipped.
	CacheHit bool `json:"cache_hit"`

	// RequestID identifies this request in logs and traces.
	RequestID string `json:"request_id"`
}

// Engine wires the pipeline components. Immutable after New; safe for
// concurrent requests.
type Engine struct {
	cache      *respcache.Cache
	corpus     *corpus.Manager
	classifier *classifier.Classifier
	router     *router.Router
	executor   *executor.Executor
	logger     *logging.Logger
}

// New creates the engine facade. The cache and corpus manager may be nil;
// caching and corpus gating are then skipped.
func New(cache *respcache.Cache, corpusMgr *corpus.Manager, cls *classifier.Classifier, rt *router.Router, exec *executor.Executor, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cls == nil {
		cls = classifier.New()
	}
	return &Engine{
		cache:      cache,
		corpus:     corpusMgr,
		classifier: cls,
		router:     rt,
		executor:   exec,
		logger:     logger.Named("engine"),
	}
}

// Answer processes one query end to end. The returned error is non-nil
// only for invalid input; pipeline failures degrade into the outcome.
//
// The classifier runs before the cache read purely to derive the response
// kind for the cache key; it is a deterministic in-process rule pass, so a
// cache hit still skips all remote work (corpus, routing arbitration, and
// handler execution).
func (e *Engine) Answer(ctx context.Context, query agent.Query) (Outcome, error) {
	if query.Text == "" {
		return Outcome{}, ErrEmptyQuery
	}

	requestID := uuid.NewString()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	if query.CompetitionID != "" {
		ctx = logging.ContextWithCompetition(ctx, query.CompetitionID)
	}
	if query.UserID != "" {
		ctx = logging.ContextWithUserID(ctx, query.UserID)
	}

	ctx, span := tracer.Start(ctx, "engine.answer")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	cls := e.classifier.Classify(query)
	kind := cls.PrimaryIntent

	if e.cache != nil {
		if text, ok := e.cache.Get(query.CompetitionID, query.Text, kind); ok {
			e.logger.Info(ctx, "answer served from cache",
				zap.String("kind", kind))
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return Outcome{
				Outcome: executor.Outcome{
					FinalText: text,
					Mode:      router.TopologySingle,
				},
				CacheHit:  true,
				RequestID: requestID,
			}, nil
		}
	}

	var avail corpus.Availability
	if e.corpus != nil && query.CompetitionID != "" {
		var err error
		avail, err = e.corpus.EnsureAvailable(ctx, query.CompetitionID)
		if err != nil {
			// Corpus trouble degrades retrieval; it never fails the request.
			e.logger.Warn(ctx, "corpus availability failed", zap.Error(err))
		}
	}

	decision := e.router.Route(ctx, query, cls)

	hctx := agent.Context{
		Category:            string(cls.Category),
		Intent:              cls.PrimaryIntent,
		UnavailableSections: avail.Unavailable,
	}

	out := e.executor.Execute(ctx, decision, query, hctx)

	if e.cache != nil {
		if stored := e.cache.PutOutcome(query.CompetitionID, query.Text, kind, out); stored {
			e.logger.Debug(ctx, "answer cached", zap.String("kind", kind))
		}
	}

	e.logger.Info(ctx, "answer produced",
		zap.String("topology", string(out.Mode)),
		zap.Strings("handlers", out.HandlersUsed),
		zap.Bool("degraded", out.Degraded),
		zap.Bool("tie_break_used", decision.TieBreakUsed))

	span.SetAttributes(
		attribute.String("topology", string(out.Mode)),
		attribute.Bool("degraded", out.Degraded),
	)

	return Outcome{
		Outcome:   out,
		RequestID: requestID,
	}, nil
}
