package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"quester/internal/workflow"
	"quester/provider"
)

// summarize streams a comprehensive answer synthesized from every search
// record, then appends it as the final assistant turn.
func (a *Agent) summarize(ctx context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	combined := ""
	for i, rec := range st.SearchResults {
		combined += fmt.Sprintf("\n--- Search %d: %s ---\n%s\n", i+1, rec.Query, renderResults(rec.Results, 0))
	}
	prompt := fmt.Sprintf(summarizationTemplate, st.OriginalQuery, combined)

	answer, err := a.generateStream(ctx, a.modelFor(a.cfg.LLM.Routing.Synthesis),
		[]provider.Message{{Role: "user", Content: prompt}}, answerStreamer(sc))
	if err != nil {
		return st, fmt.Errorf("summarizing results: %w", err)
	}
	return st.Append(workflow.Turn{
		ID:        uuid.NewString(),
		Role:      workflow.RoleAssistant,
		Content:   answer,
		CreatedAt: a.now().UTC(),
	}), nil
}

// directAnswer streams an answer grounded in the conversation history alone.
func (a *Agent) directAnswer(ctx context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	history := conversationHistory(st.Turns)
	answer, err := a.generateStream(ctx, a.modelFor(a.cfg.LLM.Routing.Chatting), []provider.Message{
		{Role: "system", Content: fmt.Sprintf(directAnswerTemplate, history, st.OriginalQuery)},
		{Role: "user", Content: st.OriginalQuery},
	}, answerStreamer(sc))
	if err != nil {
		return st, fmt.Errorf("answering directly: %w", err)
	}
	return st.Append(workflow.Turn{
		ID:        uuid.NewString(),
		Role:      workflow.RoleAssistant,
		Content:   answer,
		CreatedAt: a.now().UTC(),
	}), nil
}
