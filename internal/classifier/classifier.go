// Package classifier turns a raw query into a structured classification
// using ordered, declarative rule tables.
//
// The classifier is deliberately rule-based rather than model-based: it is
// the one place in the pipeline that must be fast and predictable. A wrong
// classification only costs an extra routing step, because the router
// re-scores handlers against the raw query text independently.
package classifier

import (
	"strings"

	"github.com/fyrsmithlabs/questd/internal/agent"
)

// Category labels the kind of work a query needs.
type Category string

const (
	CategoryRetrieval Category = "retrieval"
	CategoryCode      Category = "code"
	CategoryReasoning Category = "reasoning"
	CategoryHybrid    Category = "hybrid"
	CategoryExternal  Category = "external"
)

// Complexity tiers drive topology selection in the router.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Classification is the derived value consumed read-only by the router.
type Classification struct {
	Category      Category
	Complexity    Complexity
	PrimaryIntent string
	SubIntents    []string
}

// Rule is one intent signature: a trigger set plus the category and
// complexity it implies. Rules are evaluated in declaration order; the
// first rule with a matching trigger wins the primary intent.
type Rule struct {
	Intent     string
	Triggers   []string
	Category   Category
	Complexity Complexity
}

// DefaultIntent is assigned when no rule matches.
const DefaultIntent = "general"

// Classifier evaluates the rule tables. Construct once, share freely;
// it holds no mutable state.
type Classifier struct {
	rules     []Rule
	multiStep []string
}

// New creates a classifier with the default rule tables.
func New() *Classifier {
	return &Classifier{
		rules:     defaultRules(),
		multiStep: defaultMultiStepSignatures(),
	}
}

// NewWithRules creates a classifier with custom rule tables. Used by tests
// to exercise the matcher in isolation from the default policy.
func NewWithRules(rules []Rule, multiStep []string) *Classifier {
	return &Classifier{rules: rules, multiStep: multiStep}
}

// Classify derives a Classification from the query. It never fails: with
// no rule match it degrades to retrieval/low/"general".
//
// Complexity escalates from the primary rule's default to medium when the
// matched rules span more than one distinct category, and to high when the
// query additionally contains a multi-step reasoning signature. Spanning
// categories also reclassifies the query as hybrid.
func (c *Classifier) Classify(query agent.Query) Classification {
	text := strings.ToLower(query.Text)

	var (
		primary    *Rule
		subIntents []string
		categories = map[Category]bool{}
	)

	for i := range c.rules {
		rule := &c.rules[i]
		if !rule.matches(text) {
			continue
		}
		if primary == nil {
			primary = rule
		} else {
			subIntents = append(subIntents, rule.Intent)
		}
		categories[rule.Category] = true
	}

	if primary == nil {
		return Classification{
			Category:      CategoryRetrieval,
			Complexity:    ComplexityLow,
			PrimaryIntent: DefaultIntent,
		}
	}

	category := primary.Category
	complexity := primary.Complexity
	if complexity == "" {
		complexity = ComplexityLow
	}

	if len(categories) > 1 {
		category = CategoryHybrid
		if complexity == ComplexityLow {
			complexity = ComplexityMedium
		}
		if c.matchesMultiStep(text) {
			complexity = ComplexityHigh
		}
	}

	return Classification{
		Category:      category,
		Complexity:    complexity,
		PrimaryIntent: primary.Intent,
		SubIntents:    subIntents,
	}
}

func (r *Rule) matches(text string) bool {
	for _, trigger := range r.Triggers {
		if containsTrigger(text, trigger) {
			return true
		}
	}
	return false
}

func (c *Classifier) matchesMultiStep(text string) bool {
	for _, sig := range c.multiStep {
		if containsTrigger(text, sig) {
			return true
		}
	}
	return false
}

// containsTrigger reports whether text contains trigger as a whole word or
// phrase. Both inputs must already be lower-cased.
func containsTrigger(text, trigger string) bool {
	idx := strings.Index(text, trigger)
	if idx == -1 {
		return false
	}

	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}

	end := idx + len(trigger)
	if end < len(text) && isWordChar(text[end]) {
		return false
	}

	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
