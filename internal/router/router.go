// Package router selects capability handlers and an execution topology for
// a classified query.
//
// Routing is hybrid: a cheap deterministic keyword-affinity pass ranks all
// registered handlers, and only a genuinely ambiguous top pair escalates to
// a single semantic arbitration call. The router never returns an empty
// handler set; the registry's fallback handler guarantees termination.
package router

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/agent"
	"github.com/fyrsmithlabs/questd/internal/classifier"
	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/logging"
)

// Topology is the execution shape chosen for the selected handlers.
type Topology string

const (
	TopologySingle   Topology = "single"
	TopologyEnsemble Topology = "ensemble"
	TopologyPipeline Topology = "pipeline"
	TopologyGraph    Topology = "graph"
)

// Decision is the request-scoped routing result. Handlers is never empty.
type Decision struct {
	Handlers     []*agent.Descriptor
	Topology     Topology
	Confidence   float64
	TieBreakUsed bool

	// SubPlan is set only for the graph topology: the semantics (ensemble
	// or pipeline) the executor runs before the monitor step.
	SubPlan Topology
}

// scored pairs a descriptor with its affinity score for ranking.
type scored struct {
	desc  *agent.Descriptor
	score float64
}

// maxSelected caps the handler set for multi-handler topologies. The graph
// monitor joins at most three branches.
const maxSelected = 3

// pipelineFeeds declares which handler's output is required input for
// another. When both ends of an edge are selected, the router emits a
// pipeline with the producer first instead of an independent ensemble.
var pipelineFeeds = map[string]string{
	"progress-analysis": "strategy",
}

// Router scores registry handlers against queries. Immutable after New.
type Router struct {
	registry *agent.Registry
	arbiter  Arbiter
	cfg      config.RouterConfig
	logger   *logging.Logger
}

// New creates a router. The arbiter may be nil; ambiguous pairs then fall
// back to priority order.
func New(registry *agent.Registry, arbiter Arbiter, cfg config.RouterConfig, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		registry: registry,
		arbiter:  arbiter,
		cfg:      cfg,
		logger:   logger.Named("router"),
	}
}

// Route produces a routing decision. It always terminates with at least
// one selected handler and never returns an error: arbiter failure
// degrades to priority-order tie-break.
func (r *Router) Route(ctx context.Context, query agent.Query, cls classifier.Classification) Decision {
	ranking := r.rank(query, cls)

	// Nothing scored above the floor: designated fallback, single.
	if len(ranking) == 0 || ranking[0].score < r.cfg.MinScoreFloor {
		r.logger.Debug(ctx, "no handler above score floor, using fallback",
			zap.String("intent", cls.PrimaryIntent))
		return Decision{
			Handlers:   []*agent.Descriptor{r.registry.Fallback()},
			Topology:   TopologySingle,
			Confidence: 0.3,
		}
	}

	// Multi-handler topologies for high complexity or capability spread.
	if selected := r.selectMulti(ranking, cls); len(selected) > 1 {
		topology, subPlan := r.pickTopology(selected, cls)
		r.logger.Debug(ctx, "multi-handler route",
			zap.String("topology", string(topology)),
			zap.Int("handlers", len(selected)))
		return Decision{
			Handlers:   selected,
			Topology:   topology,
			Confidence: 0.7,
			SubPlan:    subPlan,
		}
	}

	top := ranking[0]
	if len(ranking) == 1 || top.score-ranking[1].score > r.cfg.TieBreakMargin {
		gap := top.score
		if len(ranking) > 1 {
			gap = top.score - ranking[1].score
		}
		return Decision{
			Handlers:   []*agent.Descriptor{top.desc},
			Topology:   TopologySingle,
			Confidence: clamp01(0.55 + gap/maxFloat(top.score, 1)),
		}
	}

	// Ambiguous pair: one semantic arbitration call decides the winner.
	winner, used := r.breakTie(ctx, query, top, ranking[1])
	confidence := 0.5
	if used {
		confidence = 0.9
	}
	return Decision{
		Handlers:     []*agent.Descriptor{winner},
		Topology:     TopologySingle,
		Confidence:   confidence,
		TieBreakUsed: used,
	}
}

// rank computes keyword-affinity scores for every registered handler and
// returns those with a positive score, best first. Ties break by priority.
func (r *Router) rank(query agent.Query, cls classifier.Classification) []scored {
	tokens := tokenSet(query.Text)

	var ranking []scored
	for _, d := range r.registry.All() {
		score := 0.0
		for tok := range tokens {
			if w, ok := d.KeywordAffinity[tok]; ok {
				score += w
			}
		}
		if d.HasCapability(string(cls.Category)) {
			score += r.cfg.CategoryBonus
		}
		if score > 0 {
			ranking = append(ranking, scored{desc: d, score: score})
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].score == ranking[j].score {
			return ranking[i].desc.Priority > ranking[j].desc.Priority
		}
		return ranking[i].score > ranking[j].score
	})

	return ranking
}

// selectMulti returns the handler set for ensemble/pipeline/graph routing,
// or a single-element slice when a multi-handler topology is not warranted.
func (r *Router) selectMulti(ranking []scored, cls classifier.Classification) []*agent.Descriptor {
	spread := len(cls.SubIntents) > 0
	if cls.Complexity != classifier.ComplexityHigh && !spread {
		return []*agent.Descriptor{ranking[0].desc}
	}

	top := ranking[0].score
	var selected []*agent.Descriptor
	for _, s := range ranking {
		// Comparable scores only: a distant runner-up adds noise, not
		// coverage.
		if s.score < r.cfg.MinScoreFloor || s.score < top/2 {
			break
		}
		selected = append(selected, s.desc)
		if len(selected) == maxSelected {
			break
		}
	}
	return selected
}

// pickTopology chooses among ensemble, pipeline, and graph for a selected
// multi-handler set. Pipeline wins when a declared feeds-into edge connects
// two selected handlers. Without such an edge, high complexity routes to
// graph regardless of set size: independent branches answering a
// high-complexity query are exactly where the monitor pass earns its keep.
// A feeds-ordered chain gets the graph wrapper only above two handlers.
// For graph, the second return value is the sub-plan the executor runs
// before the monitor step.
func (r *Router) pickTopology(selected []*agent.Descriptor, cls classifier.Classification) (Topology, Topology) {
	high := cls.Complexity == classifier.ComplexityHigh
	if ordered, ok := orderByFeeds(selected); ok {
		copy(selected, ordered)
		if high && len(selected) > 2 {
			return TopologyGraph, TopologyPipeline
		}
		return TopologyPipeline, ""
	}
	if high {
		return TopologyGraph, TopologyEnsemble
	}
	return TopologyEnsemble, ""
}

// orderByFeeds reorders the selection so producers precede their declared
// consumers. Reports whether any feeds edge applies.
func orderByFeeds(selected []*agent.Descriptor) ([]*agent.Descriptor, bool) {
	index := make(map[string]int, len(selected))
	for i, d := range selected {
		index[d.Name] = i
	}

	found := false
	out := make([]*agent.Descriptor, len(selected))
	copy(out, selected)
	for producer, consumer := range pipelineFeeds {
		pi, pok := index[producer]
		ci, cok := index[consumer]
		if !pok || !cok {
			continue
		}
		found = true
		if pi > ci {
			out[pi], out[ci] = out[ci], out[pi]
			index[producer], index[consumer] = ci, pi
		}
	}
	return out, found
}

// breakTie resolves an ambiguous pair. Arbiter failure or absence falls
// back to priority order and never aborts routing.
func (r *Router) breakTie(ctx context.Context, query agent.Query, a, b scored) (*agent.Descriptor, bool) {
	if r.arbiter != nil && r.cfg.ArbiterEnabled {
		chosen, err := r.arbiter.Arbitrate(ctx, query.Text,
			Candidate{Name: a.desc.Name, Description: a.desc.Description},
			Candidate{Name: b.desc.Name, Description: b.desc.Description},
		)
		if err == nil {
			if chosen == b.desc.Name {
				return b.desc, true
			}
			return a.desc, true
		}
		r.logger.Warn(ctx, "arbiter failed, resolving tie by priority",
			zap.String("a", a.desc.Name),
			zap.String("b", b.desc.Name),
			zap.Error(err))
	}

	if b.desc.Priority > a.desc.Priority {
		return b.desc, false
	}
	return a.desc, false
}

// tokenSet lower-cases and splits the query into unique word tokens.
func tokenSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
