// Package corpus lazily materializes per-competition knowledge corpora
// into the vector store and serves retrieval over them.
//
// Each competition section (overview, data, evaluation, notebooks,
// discussions) lives in its own collection so availability is a cheap
// existence check. Population is idempotent and safe to race: duplicate
// passages from concurrent first requests are tolerated, so no distributed
// lock is needed for correctness.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/vectorstore"
)

var tracer = otel.Tracer("questd/corpus")

// ErrEmptyCompetitionID indicates a request without a competition.
var ErrEmptyCompetitionID = errors.New("competition id required")

// Passage is one unit of collected corpus text.
type Passage struct {
	ID   string
	Text string
}

// Collector fetches raw corpus passages for one competition section. It is
// the only interface to the acquisition mechanics (scraping, pagination,
// API calls), which live outside the engine.
type Collector interface {
	Collect(ctx context.Context, competitionID, section string) ([]Passage, error)
}

// Availability reports the result of an EnsureAvailable call.
type Availability struct {
	// Hit is true when every required section was already indexed and no
	// collection work was needed.
	Hit bool

	// SectionsPopulated lists sections indexed or confirmed present.
	SectionsPopulated []string

	// Unavailable lists sections whose collection or indexing failed for
	// this request. Failures are not cached as permanent; the next request
	// retries them.
	Unavailable []string
}

// Manager gates retrieval handlers on corpus availability.
type Manager struct {
	store     vectorstore.Store
	collector Collector
	cfg       config.CorpusConfig
	logger    *logging.Logger
}

// NewManager creates a corpus manager.
func NewManager(store vectorstore.Store, collector Collector, cfg config.CorpusConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "corpus"
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = []string{"overview", "data", "evaluation", "notebooks", "discussions"}
	}
	if cfg.SearchK <= 0 {
		cfg.SearchK = 6
	}
	return &Manager{
		store:     store,
		collector: collector,
		cfg:       cfg,
		logger:    logger.Named("corpus"),
	}
}

// EnsureAvailable checks every required section and populates the missing
// ones via the collector. Idempotent: already-indexed sections return
// immediately. A failing section degrades locally; it is reported in
// Availability.Unavailable and never aborts the pipeline.
func (m *Manager) EnsureAvailable(ctx context.Context, competitionID string) (Availability, error) {
	if competitionID == "" {
		return Availability{}, ErrEmptyCompetitionID
	}

	ctx, span := tracer.Start(ctx, "corpus.ensure_available")
	defer span.End()
	span.SetAttributes(attribute.String("competition_id", competitionID))

	avail := Availability{Hit: true}
	for _, section := range m.cfg.Sections {
		name := m.collectionName(competitionID, section)

		exists, err := m.store.CollectionExists(ctx, name)
		if err != nil {
			m.logger.Warn(ctx, "availability check failed",
				zap.String("section", section),
				zap.Error(err))
			avail.Hit = false
			avail.Unavailable = append(avail.Unavailable, section)
			continue
		}
		if exists {
			avail.SectionsPopulated = append(avail.SectionsPopulated, section)
			continue
		}

		avail.Hit = false
		if err := m.populate(ctx, competitionID, section, name); err != nil {
			m.logger.Warn(ctx, "section population failed",
				zap.String("competition_id", competitionID),
				zap.String("section", section),
				zap.Error(err))
			avail.Unavailable = append(avail.Unavailable, section)
			continue
		}
		avail.SectionsPopulated = append(avail.SectionsPopulated, section)
	}

	span.SetAttributes(
		attribute.Bool("hit", avail.Hit),
		attribute.Int("unavailable", len(avail.Unavailable)),
	)
	return avail, nil
}

// populate collects one section and indexes it.
func (m *Manager) populate(ctx context.Context, competitionID, section, collection string) error {
	passages, err := m.collector.Collect(ctx, competitionID, section)
	if err != nil {
		return fmt.Errorf("collecting %s/%s: %w", competitionID, section, err)
	}
	if len(passages) == 0 {
		return fmt.Errorf("collector returned no passages for %s/%s", competitionID, section)
	}

	docs := make([]vectorstore.Document, len(passages))
	for i, p := range passages {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("%s_%s_%d", competitionID, section, i)
		}
		docs[i] = vectorstore.Document{
			ID:      id,
			Content: p.Text,
			Metadata: map[string]interface{}{
				"competition_id": competitionID,
				"section":        section,
			},
			Collection: collection,
		}
	}

	if _, err := m.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("indexing %s/%s: %w", competitionID, section, err)
	}

	m.logger.Info(ctx, "section indexed",
		zap.String("competition_id", competitionID),
		zap.String("section", section),
		zap.Int("passages", len(docs)))
	return nil
}

// Search retrieves the top passages for a query across all indexed sections
// of a competition, best score first. Sections that are missing or fail to
// search are skipped. Implements the retrieval agents' searcher interface.
func (m *Manager) Search(ctx context.Context, competitionID, query string, k int) ([]string, error) {
	if competitionID == "" {
		return nil, ErrEmptyCompetitionID
	}
	if k <= 0 {
		k = m.cfg.SearchK
	}

	ctx, span := tracer.Start(ctx, "corpus.search")
	defer span.End()

	var all []vectorstore.SearchResult
	for _, section := range m.cfg.Sections {
		name := m.collectionName(competitionID, section)

		exists, err := m.store.CollectionExists(ctx, name)
		if err != nil || !exists {
			continue
		}

		results, err := m.store.SearchInCollection(ctx, name, query, k, nil)
		if err != nil {
			m.logger.Warn(ctx, "section search failed",
				zap.String("section", section),
				zap.Error(err))
			continue
		}
		all = append(all, results...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > k {
		all = all[:k]
	}

	out := make([]string, len(all))
	for i, r := range all {
		out[i] = r.Content
	}
	span.SetAttributes(attribute.Int("passages", len(out)))
	return out, nil
}

// collectionName builds the per-section collection name, sanitized to the
// store's naming rules.
func (m *Manager) collectionName(competitionID, section string) string {
	return fmt.Sprintf("%s_%s_%s", m.cfg.CollectionPrefix, sanitize(competitionID), sanitize(section))
}

// sanitize maps arbitrary identifiers onto [a-z0-9_].
func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
