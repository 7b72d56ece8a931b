package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"quester/internal/workflow"
	"quester/provider"
)

type queryClassification struct {
	Classification string  `json:"classification"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
}

// classify decides whether the newest user query needs web research or can
// be answered from the conversation alone, and resets the research fields
// when a new search cycle begins.
func (a *Agent) classify(ctx context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	currentQuery := ""
	if len(st.Turns) > 0 && st.Turns[len(st.Turns)-1].Role == workflow.RoleUser {
		currentQuery = st.Turns[len(st.Turns)-1].Content
	}
	history := conversationHistory(trimTrailingUser(st.Turns))

	raw, err := a.generate(ctx, a.modelFor(a.cfg.LLM.Routing.Classification), []provider.Message{
		{Role: "system", Content: fmt.Sprintf(classificationTemplate, history, currentQuery)},
		{Role: "user", Content: currentQuery},
	})
	if err != nil {
		return st, fmt.Errorf("classifying query: %w", err)
	}

	var result queryClassification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return st, fmt.Errorf("parsing classification %q: %w", raw, err)
	}

	st.OriginalQuery = currentQuery
	if result.Classification == "NEEDS_SEARCH" {
		a.logger.Printf("classification: NEEDS_SEARCH (%.2f) - %s", result.Confidence, result.Reasoning)
		sc.Emit(workflow.Event{Type: workflow.EventStatus, Content: "Query requires web search. Planning search queries...", Step: StepClassification})
		st.PlannedQueries = nil
		st.SearchResults = nil
		st.SearchCount = 0
		st.NeedsSearch = true
		return st, nil
	}
	a.logger.Printf("classification: DIRECT_ANSWER (%.2f) - %s", result.Confidence, result.Reasoning)
	sc.Emit(workflow.Event{Type: workflow.EventStatus, Content: "Answering from conversation history...", Step: StepClassification})
	st.NeedsSearch = false
	return st, nil
}

func afterClassification(st workflow.State) string {
	if st.NeedsSearch {
		return StepPlanning
	}
	return StepDirectAnswer
}

// extractJSON pulls the first JSON object out of a model reply that may wrap
// it in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
