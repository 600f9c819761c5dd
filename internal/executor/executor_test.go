package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/router"
)

func okHandler(name, text string) *agent.Descriptor {
	return &agent.Descriptor{
		Name: name,
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			return agent.Result{HandlerName: name, Text: text, Success: true}, nil
		},
	}
}

func failHandler(name string) *agent.Descriptor {
	return &agent.Descriptor{
		Name: name,
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			return agent.Result{HandlerName: name, Success: false, Err: "boom"}, errors.New("boom")
		},
	}
}

func panicHandler(name string) *agent.Descriptor {
	return &agent.Descriptor{
		Name: name,
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			panic("handler exploded")
		},
	}
}

func blockingHandler(name string) *agent.Descriptor {
	return &agent.Descriptor{
		Name: name,
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			<-ctx.Done()
			return agent.Result{HandlerName: name}, ctx.Err()
		},
	}
}

func newExecutor(t *testing.T, descriptors []*agent.Descriptor, cfg config.ExecutorConfig) *Executor {
	t.Helper()
	withFallback := append([]*agent.Descriptor{}, descriptors...)
	withFallback = append(withFallback, okHandler("fallback", "fallback answer"))
	reg, err := agent.NewRegistry(withFallback, "fallback")
	require.NoError(t, err)
	return New(reg, cfg, nil, nil)
}

func TestExecuteSingleSuccess(t *testing.T) {
	e := newExecutor(t, []*agent.Descriptor{okHandler("a", "answer")}, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{okHandler("a", "answer")},
		Topology: router.TopologySingle,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.Equal(t, "answer", out.FinalText)
	assert.Equal(t, []string{"a"}, out.HandlersUsed)
	assert.Equal(t, router.TopologySingle, out.Mode)
	assert.False(t, out.Degraded)
}

func TestExecuteSingleFailureFallsBack(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{failHandler("broken")},
		Topology: router.TopologySingle,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.Equal(t, "fallback answer", out.FinalText)
	assert.Equal(t, []string{"fallback"}, out.HandlersUsed)
	assert.True(t, out.Degraded)
}

func TestExecuteEnsemblePartialFailure(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{MaxParallel: 2})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{
			okHandler("alive", "surviving content"),
			failHandler("dead"),
		},
		Topology: router.TopologyEnsemble,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.True(t, out.Degraded)
	assert.Contains(t, out.FinalText, "surviving content")
	assert.NotContains(t, out.FinalText, "dead")
	assert.Equal(t, []string{"alive"}, out.HandlersUsed)
}

func TestExecuteEnsembleAllFailUsesFallback(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{failHandler("x"), failHandler("y")},
		Topology: router.TopologyEnsemble,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.Equal(t, "fallback answer", out.FinalText)
	assert.True(t, out.Degraded)
}

func TestExecuteEnsembleAggregatesWithAttribution(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{
			okHandler("first", "alpha"),
			okHandler("second", "beta"),
		},
		Topology: router.TopologyEnsemble,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.False(t, out.Degraded)
	assert.Contains(t, out.FinalText, "### first")
	assert.Contains(t, out.FinalText, "### second")
	assert.Less(t, strings.Index(out.FinalText, "alpha"), strings.Index(out.FinalText, "beta"))
	assert.Equal(t, []string{"first", "second"}, out.HandlersUsed)
}

func TestExecutePipelineFeedsPriorOutput(t *testing.T) {
	var seenPrior string
	second := &agent.Descriptor{
		Name: "second",
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			seenPrior = h.PriorText
			return agent.Result{HandlerName: "second", Text: "final: " + h.PriorText, Success: true}, nil
		},
	}

	e := newExecutor(t, nil, config.ExecutorConfig{})
	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{okHandler("first", "stage one"), second},
		Topology: router.TopologyPipeline,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.Equal(t, "stage one", seenPrior)
	assert.False(t, out.Degraded)
	assert.Equal(t, []string{"first", "second"}, out.HandlersUsed)
}

func TestExecutePipelineTruncatesOnFailure(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{
			okHandler("first", "prefix content"),
			failHandler("middle"),
			okHandler("never-reached", "tail"),
		},
		Topology: router.TopologyPipeline,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.True(t, out.Degraded)
	assert.Contains(t, out.FinalText, "prefix content")
	assert.NotContains(t, out.FinalText, "tail")
	assert.Equal(t, []string{"first"}, out.HandlersUsed)
}

func TestExecuteGraphInterventionAppendsMissingContent(t *testing.T) {
	// Drafts for the "code" category must mention a fix; this one doesn't,
	// so the monitor triggers one intervention pass on the first handler.
	var interventions int
	first := &agent.Descriptor{
		Name: "reviewer",
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			if h.PriorText != "" {
				interventions++
				return agent.Result{HandlerName: "reviewer", Text: "fix: rename the variable", Success: true}, nil
			}
			return agent.Result{HandlerName: "reviewer", Text: "the loop is wrong", Success: true}, nil
		},
	}

	e := newExecutor(t, nil, config.ExecutorConfig{})
	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{first, okHandler("other", "style looks okay")},
		Topology: router.TopologyGraph,
		SubPlan:  router.TopologyEnsemble,
	}, agent.Query{Text: "review my code"}, agent.Context{Category: "code"})

	assert.Equal(t, 1, interventions)
	assert.Contains(t, out.FinalText, "the loop is wrong")
	assert.Contains(t, out.FinalText, "fix: rename the variable")
	assert.False(t, out.Degraded)
}

func TestExecuteGraphNoInterventionWhenCovered(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{
			okHandler("reviewer", "you should fix the off-by-one"),
			okHandler("other", "otherwise fine"),
		},
		Topology: router.TopologyGraph,
		SubPlan:  router.TopologyEnsemble,
	}, agent.Query{Text: "review my code"}, agent.Context{Category: "code"})

	assert.Equal(t, []string{"reviewer", "other"}, out.HandlersUsed)
}

func TestExecuteGraphSkipsMonitorWhenSubPlanProducedNothing(t *testing.T) {
	var calls int
	broken := &agent.Descriptor{
		Name: "broken",
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			calls++
			return agent.Result{HandlerName: "broken"}, errors.New("boom")
		},
	}

	// Every handler and the fallback fail: there is no draft to monitor.
	reg, err := agent.NewRegistry([]*agent.Descriptor{
		broken,
		failHandler("also-broken"),
		failHandler("fallback"),
	}, "fallback")
	require.NoError(t, err)
	e := New(reg, config.ExecutorConfig{}, nil, nil)

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{broken, failHandler("also-broken")},
		Topology: router.TopologyGraph,
		SubPlan:  router.TopologyEnsemble,
	}, agent.Query{Text: "review my code"}, agent.Context{Category: "code"})

	assert.True(t, out.Degraded)
	assert.Empty(t, out.HandlersUsed)
	// The first handler ran once in the ensemble and was not re-invoked for
	// an intervention pass.
	assert.Equal(t, 1, calls)
}

func TestExecuteDeadlineExhaustionIsDegradedNotError(t *testing.T) {
	reg, err := agent.NewRegistry([]*agent.Descriptor{
		blockingHandler("slow"),
		blockingHandler("fallback"),
	}, "fallback")
	require.NoError(t, err)

	e := New(reg, config.ExecutorConfig{
		HandlerTimeout:  config.Duration(20 * time.Millisecond),
		RequestDeadline: config.Duration(50 * time.Millisecond),
	}, nil, nil)

	start := time.Now()
	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{blockingHandler("slow")},
		Topology: router.TopologySingle,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.True(t, out.Degraded)
	assert.NotEmpty(t, out.FinalText)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecutePanicIsContained(t *testing.T) {
	e := newExecutor(t, nil, config.ExecutorConfig{})

	out := e.Execute(context.Background(), router.Decision{
		Handlers: []*agent.Descriptor{panicHandler("boomer")},
		Topology: router.TopologySingle,
	}, agent.Query{Text: "q"}, agent.Context{})

	assert.True(t, out.Degraded)
	assert.Equal(t, "fallback answer", out.FinalText)
}

func TestMonitorMissing(t *testing.T) {
	m := NewMonitor()

	missing := m.Missing("code", "this draft rambles about nothing in particular")
	assert.NotEmpty(t, missing)

	assert.Empty(t, m.Missing("code", "you should fix line 3"))
	assert.Empty(t, m.Missing("unknown-category", "anything"))
}
