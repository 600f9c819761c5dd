package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/questd/internal/llm"
)

// Candidate describes one side of an ambiguous pair for arbitration.
type Candidate struct {
	Name        string
	Description string
}

// Arbiter is the one-shot semantic tie-break oracle. It is stateless and
// consulted only when two handlers score within the tie-break margin.
type Arbiter interface {
	// Arbitrate returns the name of the chosen candidate.
	Arbitrate(ctx context.Context, queryText string, a, b Candidate) (string, error)
}

// ErrInvalidArbitration indicates the arbiter's answer named neither
// candidate.
var ErrInvalidArbitration = errors.New("arbiter chose an unknown candidate")

// LLMArbiter implements Arbiter with a single completion call that must
// return a strict JSON verdict.
type LLMArbiter struct {
	client llm.Client
}

// NewLLMArbiter creates an arbiter backed by the given completion client.
func NewLLMArbiter(client llm.Client) *LLMArbiter {
	return &LLMArbiter{client: client}
}

type arbiterVerdict struct {
	Handler string `json:"handler"`
	Reason  string `json:"reason"`
}

// Arbitrate asks the model to pick between the two candidates.
func (a *LLMArbiter) Arbitrate(ctx context.Context, queryText string, ca, cb Candidate) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are a routing arbiter. Pick the single best handler for the user query.\n")
	sb.WriteString("Return ONLY JSON: {\"handler\":\"<name>\",\"reason\":\"...\"}.\n\n")
	sb.WriteString("User query:\n")
	sb.WriteString(queryText)
	sb.WriteString("\n\nCandidates:\n")
	fmt.Fprintf(&sb, "- %s: %s\n", ca.Name, ca.Description)
	fmt.Fprintf(&sb, "- %s: %s\n", cb.Name, cb.Description)

	resp, err := a.client.Complete(ctx, sb.String())
	if err != nil {
		return "", fmt.Errorf("arbitration call: %w", err)
	}

	verdict, err := parseVerdict(resp)
	if err != nil {
		return "", err
	}

	if verdict.Handler != ca.Name && verdict.Handler != cb.Name {
		return "", fmt.Errorf("%w: %s", ErrInvalidArbitration, verdict.Handler)
	}
	return verdict.Handler, nil
}

func parseVerdict(content string) (*arbiterVerdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v arbiterVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("parsing arbiter verdict: %w", err)
	}
	if v.Handler == "" {
		return nil, errors.New("arbiter verdict missing handler")
	}
	return &v, nil
}

var _ Arbiter = (*LLMArbiter)(nil)
