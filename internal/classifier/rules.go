package classifier

// defaultRules is the ordered intent-signature table. Earlier rules win the
// primary intent; order goes from specific competition facts to broad
// conversational intents.
func defaultRules() []Rule {
	return []Rule{
		{
			Intent:     "evaluation_metric",
			Triggers:   []string{"metric", "evaluation", "evaluated", "scoring", "scored"},
			Category:   CategoryRetrieval,
			Complexity: ComplexityLow,
		},
		{
			Intent:     "data_description",
			Triggers:   []string{"dataset", "data", "column", "columns", "file", "files", "field", "features available"},
			Category:   CategoryRetrieval,
			Complexity: ComplexityLow,
		},
		{
			Intent:     "submission_format",
			Triggers:   []string{"submission", "submit", "leaderboard", "sample_submission"},
			Category:   CategoryRetrieval,
			Complexity: ComplexityLow,
		},
		{
			Intent:     "rules_and_timeline",
			Triggers:   []string{"rules", "deadline", "timeline", "prize", "prizes", "team limit"},
			Category:   CategoryRetrieval,
			Complexity: ComplexityLow,
		},
		{
			Intent:     "code_review",
			Triggers:   []string{"code", "bug", "debug", "traceback", "exception", "error", "fix", "review", "refactor", "notebook"},
			Category:   CategoryCode,
			Complexity: ComplexityMedium,
		},
		{
			Intent:     "idea_generation",
			Triggers:   []string{"ideas", "idea", "stuck", "brainstorm", "strategy", "improve", "suggest", "approach", "tips"},
			Category:   CategoryReasoning,
			Complexity: ComplexityMedium,
		},
		{
			Intent:     "progress_summary",
			Triggers:   []string{"progress", "recap", "summarize", "summary", "tried so far", "where am i"},
			Category:   CategoryReasoning,
			Complexity: ComplexityLow,
		},
		{
			Intent:     "external_lookup",
			Triggers:   []string{"latest", "news", "recent papers", "state of the art", "search the web"},
			Category:   CategoryExternal,
			Complexity: ComplexityMedium,
		},
		{
			Intent:     "greeting",
			Triggers:   []string{"hello", "hi", "hey", "thanks", "thank you"},
			Category:   CategoryExternal,
			Complexity: ComplexityLow,
		},
	}
}

// defaultMultiStepSignatures marks queries that ask for synthesis across
// several information sources or open-ended multi-part work. Only consulted
// after more than one category has already matched.
func defaultMultiStepSignatures() []string {
	return []string{
		"and also",
		"as well as",
		"in addition",
		"step by step",
		"everything",
		"combine",
		"synthesize",
		"full plan",
		"end to end",
		"compare",
	}
}
