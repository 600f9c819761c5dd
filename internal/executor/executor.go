// Package executor runs a routing decision's topology and assembles one
// final answer from the handler results.
//
// Four closed topologies are supported: single, ensemble (parallel,
// independent), pipeline (sequential, each handler feeding the next), and
// graph (ensemble or pipeline plus a monitor step with at most one
// intervention pass). Handler failures are values, never panics or
// unhandled errors: every path produces an Outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/router"
)

var tracer = otel.Tracer("questd/executor")

// degradedMessage is surfaced when a hard timeout leaves zero successful
// handler results. It is the only user-visible failure text.
const degradedMessage = "I couldn't assemble a full answer in time. Please try again or narrow the question."

// Outcome is the assembled answer returned to the engine facade. The
// contract is a flat string plus metadata; no topology returns partial
// structured data.
type Outcome struct {
	FinalText    string          `json:"final_text"`
	HandlersUsed []string        `json:"handlers_used"`
	Mode         router.Topology `json:"mode"`
	Degraded     bool            `json:"degraded"`
}

// Executor runs routing decisions. Immutable after New; safe for
// concurrent use.
type Executor struct {
	registry *agent.Registry
	cfg      config.ExecutorConfig
	metrics  *Metrics
	monitor  *Monitor
	logger   *logging.Logger
}

// New creates an executor. The registry supplies the fallback handler;
// metrics may be nil.
func New(registry *agent.Registry, cfg config.ExecutorConfig, logger *logging.Logger, metrics *Metrics) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		monitor:  NewMonitor(),
		logger:   logger.Named("executor"),
	}
}

// Execute runs the decision's topology and always returns an Outcome.
// The overall request deadline bounds the whole execution; on exhaustion
// whatever completed is aggregated and the outcome is marked degraded.
func (e *Executor) Execute(ctx context.Context, decision router.Decision, query agent.Query, hctx agent.Context) Outcome {
	ctx, span := tracer.Start(ctx, "executor.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("topology", string(decision.Topology)),
		attribute.Int("handlers", len(decision.Handlers)),
	)

	if deadline := e.cfg.RequestDeadline.Duration(); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	var outcome Outcome
	switch decision.Topology {
	case router.TopologyEnsemble:
		outcome = e.runEnsemble(ctx, decision.Handlers, query, hctx)
	case router.TopologyPipeline:
		outcome = e.runPipeline(ctx, decision.Handlers, query, hctx)
	case router.TopologyGraph:
		outcome = e.runGraph(ctx, decision, query, hctx)
	default:
		outcome = e.runSingle(ctx, decision.Handlers[0], query, hctx)
	}
	outcome.Mode = decision.Topology

	if e.metrics != nil {
		e.metrics.RecordExecution(string(decision.Topology), outcome.Degraded)
	}
	span.SetAttributes(attribute.Bool("degraded", outcome.Degraded))
	return outcome
}

// runSingle invokes one handler; on failure the fallback handler answers
// and the outcome is marked degraded.
func (e *Executor) runSingle(ctx context.Context, d *agent.Descriptor, query agent.Query, hctx agent.Context) Outcome {
	res := e.invokeOne(ctx, d, query, hctx)
	if res.Success {
		return Outcome{
			FinalText:    res.Text,
			HandlersUsed: []string{res.HandlerName},
		}
	}

	e.logger.Warn(ctx, "handler failed, invoking fallback",
		zap.String("handler", d.Name),
		zap.String("error", res.Err))
	return e.fallbackOutcome(ctx, query, hctx, nil)
}

// runEnsemble invokes all handlers independently and concurrently, bounded
// by MaxParallel, and aggregates the survivors with source attribution.
func (e *Executor) runEnsemble(ctx context.Context, handlers []*agent.Descriptor, query agent.Query, hctx agent.Context) Outcome {
	results := e.invokeAll(ctx, handlers, query, hctx)

	var ok []agent.Result
	for _, r := range results {
		if r.Success {
			ok = append(ok, r)
		}
	}

	if len(ok) == 0 {
		return e.fallbackOutcome(ctx, query, hctx, nil)
	}

	return Outcome{
		FinalText:    aggregate(ok),
		HandlersUsed: names(ok),
		Degraded:     len(ok) < len(handlers),
	}
}

// runPipeline invokes handlers in order, feeding each handler the previous
// output. A mid-chain failure truncates the chain; only the successful
// prefix is aggregated.
func (e *Executor) runPipeline(ctx context.Context, handlers []*agent.Descriptor, query agent.Query, hctx agent.Context) Outcome {
	var ok []agent.Result
	prior := hctx.PriorText
	for _, d := range handlers {
		step := hctx
		step.PriorText = prior

		res := e.invokeOne(ctx, d, query, step)
		if !res.Success {
			e.logger.Warn(ctx, "pipeline truncated",
				zap.String("handler", d.Name),
				zap.Int("completed", len(ok)))
			break
		}
		ok = append(ok, res)
		prior = res.Text
	}

	if len(ok) == 0 {
		return e.fallbackOutcome(ctx, query, hctx, nil)
	}

	// The last handler's output already folds in its predecessors, but the
	// aggregate attributes every contributing step.
	return Outcome{
		FinalText:    aggregate(ok),
		HandlersUsed: names(ok),
		Degraded:     len(ok) < len(handlers),
	}
}

// runGraph executes the router's sub-plan (pipeline when a feeds edge
// ordered the handlers, otherwise ensemble branches in parallel), then
// passes the combined draft through the monitor, which may trigger at most
// one intervention pass before final aggregation.
func (e *Executor) runGraph(ctx context.Context, decision router.Decision, query agent.Query, hctx agent.Context) Outcome {
	handlers := decision.Handlers

	var base Outcome
	if decision.SubPlan == router.TopologyPipeline {
		base = e.runPipeline(ctx, handlers, query, hctx)
	} else {
		base = e.runEnsemble(ctx, handlers, query, hctx)
	}
	// A sub-plan that produced nothing (every handler and the fallback
	// failed) has no draft worth monitoring.
	if base.FinalText == "" || (base.Degraded && len(base.HandlersUsed) == 0) {
		return base
	}

	missing := e.monitor.Missing(hctx.Category, base.FinalText)
	if len(missing) == 0 {
		return base
	}

	// One intervention pass: the first selected handler appends coverage
	// for the missing checklist items.
	e.logger.Info(ctx, "monitor requested intervention",
		zap.Strings("missing", missing))
	if e.metrics != nil {
		e.metrics.RecordIntervention()
	}

	interventionCtx := hctx
	interventionCtx.PriorText = base.FinalText
	interventionQuery := query
	interventionQuery.Text = fmt.Sprintf(
		"The draft answer above does not cover: %s. Append a short section covering these points for the original question: %s",
		strings.Join(missing, ", "), query.Text)

	res := e.invokeOne(ctx, handlers[0], interventionQuery, interventionCtx)
	if !res.Success {
		// Intervention is best-effort; the draft stands.
		return base
	}

	base.FinalText = base.FinalText + "\n\n" + res.Text
	if !contains(base.HandlersUsed, res.HandlerName) {
		base.HandlersUsed = append(base.HandlersUsed, res.HandlerName)
	}
	return base
}

// invokeAll runs handlers concurrently with a semaphore bound and returns
// results in handler order. Slots left empty by context cancellation are
// reported as failures.
func (e *Executor) invokeAll(ctx context.Context, handlers []*agent.Descriptor, query agent.Query, hctx agent.Context) []agent.Result {
	results := make([]agent.Result, len(handlers))

	maxParallel := e.cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = len(handlers)
	}
	sem := make(chan struct{}, maxParallel)

	var wg sync.WaitGroup
	for i, d := range handlers {
		wg.Add(1)
		go func(i int, d *agent.Descriptor) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = agent.Result{
					HandlerName: d.Name,
					Err:         ctx.Err().Error(),
				}
				return
			}

			results[i] = e.invokeOne(ctx, d, query, hctx)
		}(i, d)
	}
	wg.Wait()

	return results
}

// invokeOne runs a single handler with the per-handler timeout, panic
// recovery, tracing, and metrics. Failures come back as values.
func (e *Executor) invokeOne(ctx context.Context, d *agent.Descriptor, query agent.Query, hctx agent.Context) (res agent.Result) {
	ctx, span := tracer.Start(ctx, "executor.invoke_handler")
	defer span.End()
	span.SetAttributes(attribute.String("handler", d.Name))

	if timeout := e.cfg.HandlerTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "handler panicked",
				zap.String("handler", d.Name),
				zap.Any("panic", r))
			res = agent.Result{
				HandlerName: d.Name,
				Err:         fmt.Sprintf("handler panic: %v", r),
				LatencyMS:   time.Since(start).Milliseconds(),
			}
		}
		if e.metrics != nil {
			e.metrics.RecordHandler(d.Name, time.Since(start), res.Success)
		}
	}()

	res, err := d.Invoke(ctx, query, hctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn(ctx, "handler timeout",
				zap.String("handler", d.Name),
				zap.Duration("elapsed", time.Since(start)))
			if e.metrics != nil {
				e.metrics.RecordHandlerTimeout(d.Name)
			}
		}
		res.Success = false
		if res.Err == "" {
			res.Err = err.Error()
		}
	}
	if res.HandlerName == "" {
		res.HandlerName = d.Name
	}
	return res
}

// fallbackOutcome answers with the designated conversational handler after
// the selected handlers all failed. If even the fallback fails, the
// generic degraded message is returned; nothing escapes as an error.
func (e *Executor) fallbackOutcome(ctx context.Context, query agent.Query, hctx agent.Context, exclude []string) Outcome {
	fb := e.registry.Fallback()
	if !contains(exclude, fb.Name) {
		res := e.invokeOne(ctx, fb, query, hctx)
		if res.Success {
			return Outcome{
				FinalText:    res.Text,
				HandlersUsed: []string{fb.Name},
				Degraded:     true,
			}
		}
	}

	return Outcome{
		FinalText: degradedMessage,
		Degraded:  true,
	}
}

// aggregate produces the flat final text. A single result passes through
// unadorned; multiple results are concatenated with source attribution.
func aggregate(results []agent.Result) string {
	if len(results) == 1 {
		return results[0].Text
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n\n%s", r.HandlerName, r.Text)
	}
	return b.String()
}

func names(results []agent.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.HandlerName
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
