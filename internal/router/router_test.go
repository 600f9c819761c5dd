package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/classifier"
	"github.com/fyrsmithlabs/questd/internal/config"
)

type stubArbiter struct {
	choice string
	err    error
	calls  int
}

func (s *stubArbiter) Arbitrate(ctx context.Context, query string, a, b Candidate) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.choice != "" {
		return s.choice, nil
	}
	return a.Name, nil
}

func descriptor(name string, priority int, affinity map[string]float64, caps ...string) *agent.Descriptor {
	return &agent.Descriptor{
		Name:            name,
		Description:     "test handler " + name,
		Capabilities:    caps,
		KeywordAffinity: affinity,
		Priority:        priority,
		Invoke: func(ctx context.Context, q agent.Query, h agent.Context) (agent.Result, error) {
			return agent.Result{HandlerName: name, Text: name, Success: true}, nil
		},
	}
}

func testRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg, err := agent.NewRegistry([]*agent.Descriptor{
		descriptor("knowledge", 10, map[string]float64{"metric": 2, "data": 1.5}, "retrieval"),
		descriptor("code", 8, map[string]float64{"code": 2, "bug": 2}, "code"),
		descriptor("strategy", 7, map[string]float64{"ideas": 2, "stuck": 2}, "reasoning"),
		descriptor("progress-analysis", 5, map[string]float64{"progress": 2, "tried": 1.5}, "reasoning"),
		descriptor("fallback", 1, map[string]float64{"hello": 1}, "external"),
	}, "fallback")
	require.NoError(t, err)
	return reg
}

func testRouterConfig() config.RouterConfig {
	return config.RouterConfig{
		TieBreakMargin: 0.15,
		MinScoreFloor:  0.5,
		CategoryBonus:  1.0,
		ArbiterEnabled: true,
	}
}

func TestRouteNeverEmpty(t *testing.T) {
	r := New(testRegistry(t), nil, testRouterConfig(), nil)

	queries := []string{
		"what is the metric?",
		"",
		"completely unrelated gibberish xyzzy",
		"code ideas data progress everything",
	}
	for _, q := range queries {
		cls := classifier.New().Classify(agent.Query{Text: q})
		d := r.Route(context.Background(), agent.Query{Text: q}, cls)
		assert.NotEmpty(t, d.Handlers, q)
	}
}

func TestRouteDominantMatchIsSingleWithoutArbiter(t *testing.T) {
	arb := &stubArbiter{}
	r := New(testRegistry(t), arb, testRouterConfig(), nil)

	d := r.Route(context.Background(), agent.Query{Text: "what is the metric?"}, classifier.Classification{
		Category:   classifier.CategoryRetrieval,
		Complexity: classifier.ComplexityLow,
	})

	assert.Equal(t, TopologySingle, d.Topology)
	require.Len(t, d.Handlers, 1)
	assert.Equal(t, "knowledge", d.Handlers[0].Name)
	assert.False(t, d.TieBreakUsed)
	assert.Zero(t, arb.calls)
	assert.Greater(t, d.Confidence, 0.5)
}

func TestRouteAmbiguousPairInvokesArbiterConsistently(t *testing.T) {
	// Two handlers with deliberately equal scores on the same token.
	reg, err := agent.NewRegistry([]*agent.Descriptor{
		descriptor("a", 5, map[string]float64{"tune": 2}, "reasoning"),
		descriptor("b", 4, map[string]float64{"tune": 2}, "reasoning"),
		descriptor("fallback", 1, nil, "external"),
	}, "fallback")
	require.NoError(t, err)

	arb := &stubArbiter{choice: "b"}
	r := New(reg, arb, testRouterConfig(), nil)

	cls := classifier.Classification{Category: classifier.CategoryReasoning, Complexity: classifier.ComplexityLow}
	for i := 0; i < 2; i++ {
		d := r.Route(context.Background(), agent.Query{Text: "tune it"}, cls)
		require.Len(t, d.Handlers, 1)
		assert.Equal(t, "b", d.Handlers[0].Name)
		assert.True(t, d.TieBreakUsed)
		assert.InDelta(t, 0.9, d.Confidence, 0.001)
	}
	assert.Equal(t, 2, arb.calls)
}

func TestRouteArbiterFailureFallsBackToPriority(t *testing.T) {
	reg, err := agent.NewRegistry([]*agent.Descriptor{
		descriptor("low-priority", 2, map[string]float64{"tune": 2}, "reasoning"),
		descriptor("high-priority", 9, map[string]float64{"tune": 2}, "reasoning"),
		descriptor("fallback", 1, nil, "external"),
	}, "fallback")
	require.NoError(t, err)

	arb := &stubArbiter{err: errors.New("arbiter down")}
	r := New(reg, arb, testRouterConfig(), nil)

	d := r.Route(context.Background(), agent.Query{Text: "tune it"}, classifier.Classification{
		Category: classifier.CategoryReasoning,
	})

	require.Len(t, d.Handlers, 1)
	assert.Equal(t, "high-priority", d.Handlers[0].Name)
	assert.False(t, d.TieBreakUsed)
	assert.Equal(t, 1, arb.calls)
}

func TestRouteBelowFloorSelectsFallback(t *testing.T) {
	r := New(testRegistry(t), nil, testRouterConfig(), nil)

	d := r.Route(context.Background(), agent.Query{Text: "zzz qqq"}, classifier.Classification{
		Category: "nonexistent",
	})

	require.Len(t, d.Handlers, 1)
	assert.Equal(t, "fallback", d.Handlers[0].Name)
	assert.Equal(t, TopologySingle, d.Topology)
}

func TestRouteHighComplexitySelectsMultipleHandlers(t *testing.T) {
	r := New(testRegistry(t), nil, testRouterConfig(), nil)

	d := r.Route(context.Background(), agent.Query{Text: "check my code and give ideas, I'm stuck"}, classifier.Classification{
		Category:   classifier.CategoryHybrid,
		Complexity: classifier.ComplexityHigh,
		SubIntents: []string{"idea_generation"},
	})

	assert.GreaterOrEqual(t, len(d.Handlers), 2)
	assert.Contains(t, []Topology{TopologyPipeline, TopologyGraph}, d.Topology)
}

func TestRouteHighComplexityWithoutFeedsEdgeUsesGraph(t *testing.T) {
	r := New(testRegistry(t), nil, testRouterConfig(), nil)

	// A code+reasoning pair with no declared feeds edge: high complexity
	// must still yield a monitored topology, not a plain ensemble.
	query := agent.Query{Text: "I'm stuck, give me ideas and also check my code"}
	cls := classifier.New().Classify(query)
	require.Equal(t, classifier.ComplexityHigh, cls.Complexity)

	d := r.Route(context.Background(), query, cls)

	require.GreaterOrEqual(t, len(d.Handlers), 2)
	assert.Equal(t, TopologyGraph, d.Topology)
	assert.Equal(t, TopologyEnsemble, d.SubPlan)
}

func TestRouteMediumSpreadStaysEnsemble(t *testing.T) {
	r := New(testRegistry(t), nil, testRouterConfig(), nil)

	d := r.Route(context.Background(), agent.Query{Text: "check my code and give ideas"}, classifier.Classification{
		Category:   classifier.CategoryHybrid,
		Complexity: classifier.ComplexityMedium,
		SubIntents: []string{"idea_generation"},
	})

	require.GreaterOrEqual(t, len(d.Handlers), 2)
	assert.Equal(t, TopologyEnsemble, d.Topology)
	assert.Empty(t, d.SubPlan)
}

func TestRoutePipelineOrdersProducerFirst(t *testing.T) {
	r := New(testRegistry(t), nil, testRouterConfig(), nil)

	// The declared feeds edge must put the producer before its consumer
	// regardless of score order.
	d := r.Route(context.Background(), agent.Query{Text: "ideas based on the progress I tried"}, classifier.Classification{
		Category:   classifier.CategoryReasoning,
		Complexity: classifier.ComplexityHigh,
		SubIntents: []string{"progress_summary"},
	})

	require.GreaterOrEqual(t, len(d.Handlers), 2)
	assert.Equal(t, TopologyPipeline, d.Topology)

	var names []string
	for _, h := range d.Handlers {
		names = append(names, h.Name)
	}
	require.Contains(t, names, "progress-analysis")
	require.Contains(t, names, "strategy")
	assert.Less(t, indexOf(names, "progress-analysis"), indexOf(names, "strategy"))
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

func TestTokenSet(t *testing.T) {
	set := tokenSet("What is the Metric, really?")
	assert.True(t, set["metric"])
	assert.True(t, set["what"])
	assert.False(t, set["metric,"])
}
