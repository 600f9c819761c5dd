package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/questd/internal/llm"
)

// FallbackName is the registry name of the general conversational handler.
const FallbackName = "general-chat"

// PassageSearcher retrieves corpus passages for a competition. Implemented
// by the corpus manager; stubbed in tests.
type PassageSearcher interface {
	Search(ctx context.Context, competitionID, query string, k int) ([]string, error)
}

// DefaultRegistry wires the standard handler roster against one completion
// client and the corpus searcher.
func DefaultRegistry(client llm.Client, searcher PassageSearcher, searchK int) (*Registry, error) {
	return NewRegistry([]*Descriptor{
		NewKnowledgeAgent(client, searcher, searchK),
		NewCodeReviewAgent(client),
		NewStrategyAgent(client),
		NewProgressAgent(client),
		NewGeneralChatAgent(client),
	}, FallbackName)
}

// NewKnowledgeAgent answers factual competition questions by retrieving
// corpus passages and synthesizing them with the LLM.
func NewKnowledgeAgent(client llm.Client, searcher PassageSearcher, searchK int) *Descriptor {
	if searchK <= 0 {
		searchK = 6
	}
	return &Descriptor{
		Name:        "competition-knowledge",
		Description: "Answers factual questions about the competition: evaluation metric, data files, submission format, rules, deadlines.",
		Capabilities: []string{
			"retrieval", "hybrid",
		},
		KeywordAffinity: map[string]float64{
			"metric": 2.0, "evaluation": 2.0, "evaluated": 2.0, "score": 1.0,
			"data": 1.5, "dataset": 2.0, "column": 1.5, "columns": 1.5,
			"file": 1.0, "files": 1.0, "submission": 2.0, "submit": 1.5,
			"leaderboard": 1.5, "rules": 1.5, "deadline": 1.5,
			"overview": 1.0, "describe": 1.0, "what": 0.5,
		},
		Priority: 10,
		Invoke: func(ctx context.Context, query Query, hctx Context) (Result, error) {
			start := time.Now()

			passages, err := searcher.Search(ctx, query.CompetitionID, query.Text, searchK)
			if err != nil {
				// Retrieval failure degrades to an LLM-only answer with a
				// caveat rather than failing the handler outright.
				passages = nil
			}

			var b strings.Builder
			b.WriteString("You are a competition assistant. Answer the question using the provided context.\n")
			if len(hctx.UnavailableSections) > 0 {
				fmt.Fprintf(&b, "Note: these corpus sections are unavailable: %s. Say so if the answer depends on them.\n",
					strings.Join(hctx.UnavailableSections, ", "))
			}
			if len(passages) > 0 {
				b.WriteString("\nContext passages:\n")
				for i, p := range passages {
					fmt.Fprintf(&b, "[%d] %s\n", i+1, p)
				}
			} else {
				b.WriteString("\nNo context passages were found; answer from general knowledge and say the competition corpus was unavailable.\n")
			}
			fmt.Fprintf(&b, "\nCompetition: %s\nQuestion: %s\n", query.CompetitionID, query.Text)

			text, err := client.Complete(ctx, b.String())
			return finish("competition-knowledge", text, err, start)
		},
	}
}

// NewCodeReviewAgent reviews code snippets included in the query.
func NewCodeReviewAgent(client llm.Client) *Descriptor {
	return &Descriptor{
		Name:        "code-review",
		Description: "Reviews and debugs the user's code: correctness, bugs, performance, and competition-specific pitfalls.",
		Capabilities: []string{
			"code", "hybrid",
		},
		KeywordAffinity: map[string]float64{
			"code": 2.0, "bug": 2.0, "error": 1.5, "debug": 2.0,
			"review": 1.5, "fix": 1.5, "function": 1.0, "script": 1.0,
			"refactor": 1.5, "exception": 1.5, "traceback": 2.0,
			"crash": 1.5, "notebook": 1.0,
		},
		Priority: 8,
		Invoke: func(ctx context.Context, query Query, hctx Context) (Result, error) {
			start := time.Now()

			var b strings.Builder
			b.WriteString("You are a code reviewer for data-science competition code. Point out bugs, then suggest concrete fixes.\n")
			if hctx.PriorText != "" {
				fmt.Fprintf(&b, "\nAnalysis from a previous step:\n%s\n", hctx.PriorText)
			}
			fmt.Fprintf(&b, "\nUser request:\n%s\n", query.Text)

			text, err := client.Complete(ctx, b.String())
			return finish("code-review", text, err, start)
		},
	}
}

// NewStrategyAgent generates modeling ideas and next steps.
func NewStrategyAgent(client llm.Client) *Descriptor {
	return &Descriptor{
		Name:        "strategy",
		Description: "Generates modeling strategies, feature ideas, and next steps when the user is stuck or wants to improve their score.",
		Capabilities: []string{
			"reasoning", "hybrid",
		},
		KeywordAffinity: map[string]float64{
			"ideas": 2.0, "idea": 2.0, "strategy": 2.0, "improve": 1.5,
			"stuck": 2.0, "approach": 1.5, "brainstorm": 2.0,
			"feature": 1.0, "features": 1.0, "tips": 1.5, "suggest": 1.5,
			"better": 1.0, "boost": 1.0,
		},
		Priority: 7,
		Invoke: func(ctx context.Context, query Query, hctx Context) (Result, error) {
			start := time.Now()

			var b strings.Builder
			b.WriteString("You are a competition strategy coach. Propose concrete, prioritized next steps.\n")
			if hctx.PriorText != "" {
				fmt.Fprintf(&b, "\nProgress analysis to build on:\n%s\n", hctx.PriorText)
			}
			fmt.Fprintf(&b, "\nCompetition: %s\nUser request:\n%s\n", query.CompetitionID, query.Text)

			text, err := client.Complete(ctx, b.String())
			return finish("strategy", text, err, start)
		},
	}
}

// NewProgressAgent summarizes what the user has tried so far from the
// conversation history. Natural pipeline predecessor for the strategy
// handler.
func NewProgressAgent(client llm.Client) *Descriptor {
	return &Descriptor{
		Name:        "progress-analysis",
		Description: "Summarizes what the user has tried so far from the conversation history and identifies gaps.",
		Capabilities: []string{
			"reasoning",
		},
		KeywordAffinity: map[string]float64{
			"progress": 2.0, "summary": 1.5, "summarize": 1.5,
			"tried": 1.5, "far": 0.5, "recap": 2.0, "history": 1.0,
		},
		Priority: 5,
		Invoke: func(ctx context.Context, query Query, hctx Context) (Result, error) {
			start := time.Now()

			var b strings.Builder
			b.WriteString("Summarize what the user has attempted so far and what gaps remain. Be brief and factual.\n")
			if len(query.History) > 0 {
				b.WriteString("\nConversation history (newest last):\n")
				for _, t := range query.History {
					fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
				}
			}
			fmt.Fprintf(&b, "\nCurrent request:\n%s\n", query.Text)

			text, err := client.Complete(ctx, b.String())
			return finish("progress-analysis", text, err, start)
		},
	}
}

// NewGeneralChatAgent is the designated fallback conversational handler.
// It must never be absent from the registry.
func NewGeneralChatAgent(client llm.Client) *Descriptor {
	return &Descriptor{
		Name:        FallbackName,
		Description: "General conversational assistant for anything the specialized handlers do not cover.",
		Capabilities: []string{
			"external", "retrieval",
		},
		KeywordAffinity: map[string]float64{
			"hello": 1.0, "hi": 1.0, "thanks": 1.0, "help": 0.5,
		},
		Priority: 1,
		Invoke: func(ctx context.Context, query Query, hctx Context) (Result, error) {
			start := time.Now()

			var b strings.Builder
			b.WriteString("You are a helpful assistant for data-science competitions.\n")
			if hctx.PriorText != "" {
				fmt.Fprintf(&b, "\nEarlier draft answer:\n%s\n", hctx.PriorText)
			}
			fmt.Fprintf(&b, "\nUser: %s\n", query.Text)

			text, err := client.Complete(ctx, b.String())
			return finish(FallbackName, text, err, start)
		},
	}
}

// finish assembles a Result from a completion call.
func finish(name, text string, err error, start time.Time) (Result, error) {
	res := Result{
		HandlerName: name,
		Text:        text,
		Success:     err == nil,
		LatencyMS:   time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Err = err.Error()
	}
	return res, err
}
