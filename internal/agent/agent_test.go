package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLM echoes the prompt so tests can assert on prompt assembly.
type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return prompt, nil
}

type stubSearcher struct {
	passages []string
	err      error
	calls    int
}

func (s *stubSearcher) Search(ctx context.Context, competitionID, query string, k int) ([]string, error) {
	s.calls++
	return s.passages, s.err
}

func testDescriptor(name string) *Descriptor {
	return &Descriptor{
		Name: name,
		Invoke: func(ctx context.Context, q Query, h Context) (Result, error) {
			return Result{HandlerName: name, Text: "ok", Success: true}, nil
		},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []*Descriptor
		fallback    string
		wantErr     error
	}{
		{
			name:        "empty",
			descriptors: nil,
			fallback:    "x",
		},
		{
			name:        "duplicate names",
			descriptors: []*Descriptor{testDescriptor("a"), testDescriptor("a")},
			fallback:    "a",
			wantErr:     ErrDuplicateName,
		},
		{
			name:        "missing fallback",
			descriptors: []*Descriptor{testDescriptor("a")},
			fallback:    "b",
			wantErr:     ErrNoFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.descriptors, tt.fallback)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRegistryLookups(t *testing.T) {
	a := testDescriptor("a")
	a.Capabilities = []string{"retrieval"}
	b := testDescriptor("b")
	b.Capabilities = []string{"code", "retrieval"}

	reg, err := NewRegistry([]*Descriptor{a, b}, "a")
	require.NoError(t, err)

	got, err := reg.Get("b")
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownHandler)

	assert.Equal(t, []*Descriptor{a, b}, reg.All())
	assert.Equal(t, []*Descriptor{a, b}, reg.ByCapability("retrieval"))
	assert.Equal(t, []*Descriptor{b}, reg.ByCapability("code"))
	assert.Same(t, a, reg.Fallback())
	assert.Equal(t, 2, reg.Len())
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry(&stubLLM{}, &stubSearcher{}, 6)
	require.NoError(t, err)

	assert.Equal(t, 5, reg.Len())
	assert.Equal(t, FallbackName, reg.Fallback().Name)

	// Every descriptor carries routing metadata.
	for _, d := range reg.All() {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotEmpty(t, d.Capabilities, d.Name)
		assert.NotEmpty(t, d.KeywordAffinity, d.Name)
		assert.NotNil(t, d.Invoke, d.Name)
	}
}

func TestKnowledgeAgentUsesRetrievedPassages(t *testing.T) {
	searcher := &stubSearcher{passages: []string{"Submissions are evaluated on RMSE."}}
	d := NewKnowledgeAgent(&stubLLM{}, searcher, 3)

	res, err := d.Invoke(context.Background(), Query{
		Text:          "What is the evaluation metric?",
		CompetitionID: "titanic",
	}, Context{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 1, searcher.calls)
	assert.Contains(t, res.Text, "evaluated on RMSE")
	assert.Contains(t, res.Text, "titanic")
}

func TestKnowledgeAgentDegradesOnSearchFailure(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index offline")}
	d := NewKnowledgeAgent(&stubLLM{}, searcher, 3)

	res, err := d.Invoke(context.Background(), Query{Text: "metric?", CompetitionID: "titanic"}, Context{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Text, "No context passages")
}

func TestAgentFailureIsAValue(t *testing.T) {
	d := NewStrategyAgent(&stubLLM{err: errors.New("api down")})

	res, err := d.Invoke(context.Background(), Query{Text: "give me ideas"}, Context{})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "api down", res.Err)
	assert.Equal(t, "strategy", res.HandlerName)
}

func TestPipelinePriorTextFlowsIntoPrompt(t *testing.T) {
	d := NewStrategyAgent(&stubLLM{})

	res, err := d.Invoke(context.Background(), Query{Text: "next steps?"}, Context{
		PriorText: "User has tried logistic regression only.",
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(res.Text, "logistic regression"))
}
