package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"quester/internal/memory"
	"quester/internal/workflow"
)

// memoryCheck consults the episodic advisor. A recommendation lands in
// UserFeedback so the downstream routing treats it exactly like user input;
// no recommendation means the plan goes to human review.
func (a *Agent) memoryCheck(ctx context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	if st.OriginalQuery == "" || len(st.PlannedQueries) == 0 {
		return st, nil
	}
	decision := a.advisor.Recommend(ctx, userID(st), st.OriginalQuery, st.PlannedQueries)
	if decision == "" {
		return st, nil
	}
	a.logger.Printf("episodic auto-decision: %s", decision)
	sc.Emit(workflow.Event{Type: workflow.EventStatus,
		Content: fmt.Sprintf("Applying learned review preference: %s", decision), Step: StepMemoryCheck})
	st.UserFeedback = decision
	return st, nil
}

func afterMemoryCheck(st workflow.State) string {
	switch st.UserFeedback {
	case memory.DecisionApprove, memory.DecisionSkip:
		return StepProcessFeedback
	}
	return StepHumanReview
}

// humanReview suspends the run until the user reacts to the planned queries.
// On resume the same step runs again with the resume value available and
// records it as the user's feedback.
func (a *Agent) humanReview(_ context.Context, sc *workflow.StepContext, st workflow.State) (workflow.State, error) {
	if value, ok := sc.ResumeValue(); ok {
		st.UserFeedback = value
		return st, nil
	}
	return st, &workflow.Interrupt{Prompt: reviewPrompt(st)}
}

func reviewPrompt(st workflow.State) string {
	var numbered []string
	for i, q := range st.PlannedQueries {
		numbered = append(numbered, fmt.Sprintf("%d. %s", i+1, q))
	}
	return fmt.Sprintf(`I've planned the following search queries for: %q

Planned queries:
%s

Options:
- Type "approve" to proceed with these queries
- Provide feedback to improve the queries (e.g., "focus more on recent developments" or "add query about pricing")
- Type "skip" to answer without searching`, st.OriginalQuery, strings.Join(numbered, "\n"))
}

// processFeedback records the review episode and normalizes the feedback:
// approve and skip pass through, anything else (including empty input)
// becomes a revision request appended to the conversation.
func (a *Agent) processFeedback(ctx context.Context, _ *workflow.StepContext, st workflow.State) (workflow.State, error) {
	input := st.UserFeedback
	decision := memory.DecisionFeedback
	switch strings.ToLower(strings.TrimSpace(input)) {
	case memory.DecisionApprove:
		decision = memory.DecisionApprove
	case memory.DecisionSkip:
		decision = memory.DecisionSkip
	}

	if st.OriginalQuery != "" && len(st.PlannedQueries) > 0 {
		feedbackText := ""
		if decision == memory.DecisionFeedback {
			feedbackText = input
		}
		a.advisor.Record(ctx, userID(st), st.OriginalQuery, st.PlannedQueries, decision, feedbackText)
	}

	if decision != memory.DecisionFeedback {
		return st, nil
	}

	feedback := input
	if feedback == "" {
		feedback = "Please revise the queries"
	}
	st = st.Append(workflow.Turn{
		ID:        uuid.NewString(),
		Role:      workflow.RoleUser,
		Content:   "User feedback on planned queries: " + feedback,
		CreatedAt: a.now().UTC(),
	})
	st.UserFeedback = feedback
	return st, nil
}

func afterProcessFeedback(st workflow.State) string {
	switch strings.ToLower(strings.TrimSpace(st.UserFeedback)) {
	case memory.DecisionSkip:
		return StepDirectAnswer
	case memory.DecisionApprove:
		return StepSearch
	}
	return StepPlanning
}

func userID(st workflow.State) string {
	if st.UserID != "" {
		return st.UserID
	}
	return "default_user"
}
