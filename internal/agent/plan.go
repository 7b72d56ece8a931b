package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quester/internal/workflow"
	"quester/provider"
)

const maxPlannedQueries = 3

// plan generates up to three search queries for the original query. When the
// user sent the plan back with feedback, the feedback is folded into the
// prompt and cleared once consumed.
func (a *Agent) plan(ctx context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	history := conversationHistory(trimTrailingUser(st.Turns))

	prompt := fmt.Sprintf(planningTemplate, history, a.now().Format(time.RFC3339), st.OriginalQuery)
	if st.UserFeedback != "" {
		prompt += fmt.Sprintf("\n\nUser feedback on previous queries: %s\nPlease revise the queries based on this feedback.", st.UserFeedback)
	}

	raw, err := a.generate(ctx, a.modelFor(a.cfg.LLM.Routing.Planning), []provider.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: st.OriginalQuery},
	})
	if err != nil {
		return st, fmt.Errorf("planning queries: %w", err)
	}

	var queries []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
	}
	if len(queries) > maxPlannedQueries {
		queries = queries[:maxPlannedQueries]
	}

	sc.Emit(workflow.Event{Type: workflow.EventPlanningSummary,
		Content: fmt.Sprintf("Planned %d search queries", len(queries)), Step: StepPlanning})
	for i, q := range queries {
		sc.Emit(workflow.Event{Type: workflow.EventPlannedQuery,
			Content: fmt.Sprintf("%d. %s", i+1, q), Step: StepPlanning})
	}

	st = st.Append(workflow.Turn{
		ID:        uuid.NewString(),
		Role:      workflow.RoleAssistant,
		Content:   fmt.Sprintf("%s%d search queries", plannedTurnPrefix, len(queries)),
		CreatedAt: a.now().UTC(),
	})
	st.PlannedQueries = queries
	st.SearchResults = nil
	st.SearchCount = 0
	st.UserFeedback = ""
	return st, nil
}

// trimTrailingUser drops the newest user turn so the prompt history only
// covers earlier exchanges.
func trimTrailingUser(turns []workflow.Turn) []workflow.Turn {
	if len(turns) > 0 && turns[len(turns)-1].Role == workflow.RoleUser {
		return turns[:len(turns)-1]
	}
	return turns
}
