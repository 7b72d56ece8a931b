package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"quester/internal/workflow"
	"quester/tools/websearch"
)

// search executes exactly one planned query per invocation; the router loops
// back until every query ran. Results land both as a structured record and
// as a tool turn in the transcript.
func (a *Agent) search(ctx context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	if st.SearchCount >= len(st.PlannedQueries) {
		return st, nil
	}
	query := st.PlannedQueries[st.SearchCount]
	sc.Emit(workflow.Event{Type: workflow.EventStatus,
		Content: fmt.Sprintf("Searching %d/%d: %s", st.SearchCount+1, len(st.PlannedQueries), query),
		Step:    StepSearch})

	results, err := a.searcher.Search(ctx, query, a.maxResults())
	if a.telemetry != nil {
		a.telemetry.RecordSearch(a.cfg.Search.Provider, err)
	}
	if err != nil {
		return st, fmt.Errorf("searching %q: %w", query, err)
	}
	a.enrich(ctx, results)

	turn := workflow.Turn{
		ID:         uuid.NewString(),
		Role:       workflow.RoleTool,
		Content:    renderResults(results, toolTurnClip),
		ToolCallID: fmt.Sprintf("search_%d", st.SearchCount),
		Results:    results,
		CreatedAt:  a.now().UTC(),
	}
	st = st.Append(turn)

	records := make([]workflow.SearchRecord, 0, len(st.SearchResults)+1)
	records = append(records, st.SearchResults...)
	records = append(records, workflow.SearchRecord{Query: query, Results: results})
	st.SearchResults = records
	st.SearchCount++

	sc.Emit(workflow.Event{Type: workflow.EventToolMessage, Turn: &turn, Step: StepSearch})
	sc.Emit(workflow.Event{Type: workflow.EventSearchResults, Content: query, Results: results, Step: StepSearch})
	return st, nil
}

func afterSearch(st workflow.State) string {
	if st.SearchCount < len(st.PlannedQueries) {
		return StepSearch
	}
	if st.SearchCount >= len(st.PlannedQueries) && st.SearchCount > 0 {
		return StepPreSummarize
	}
	// Nothing was planned and nothing ran; there is nothing to summarize.
	return workflow.End
}

// preSummarize signals that answer generation is about to begin.
func (a *Agent) preSummarize(_ context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	sc.Emit(workflow.Event{Type: workflow.EventSummarizationStart,
		Content: "Generating comprehensive answer from search results...", Step: StepPreSummarize})
	return st, nil
}

// enrich replaces the top result's snippet with extracted article text when
// a fetcher is configured. Enrichment is best effort.
func (a *Agent) enrich(ctx context.Context, results []websearch.Result) {
	if a.fetcher == nil || len(results) == 0 || results[0].URL == "" {
		return
	}
	text, err := a.fetcher.Fetch(ctx, results[0].URL)
	if err != nil {
		a.logger.Printf("content fetch for %s failed: %v", results[0].URL, err)
		return
	}
	if text != "" {
		results[0].Content = text
	}
}

func (a *Agent) maxResults() int {
	if a.cfg.Search.MaxResults > 0 {
		return a.cfg.Search.MaxResults
	}
	return 3
}

// toolTurnClip bounds snippets in transcript tool turns. The summarization
// prompt gets the full content; only the stored transcript is clipped.
const toolTurnClip = 200

// renderResults formats results as prompt text. A positive clip bounds each
// snippet; zero passes content through whole.
func renderResults(results []websearch.Result, clip int) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		content := r.Content
		if clip > 0 && len(content) > clip {
			content = content[:clip] + "..."
		}
		parts = append(parts, fmt.Sprintf("Title: %s\nURL: %s\nContent: %s", r.Title, r.URL, content))
	}
	return strings.Join(parts, "\n\n")
}
