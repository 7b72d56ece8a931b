package workflow

import (
	"time"

	"quester/tools/websearch"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single entry in the conversation transcript.
type Turn struct {
	ID         string             `json:"id"`
	Role       Role               `json:"role"`
	Content    string             `json:"content"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	Results    []websearch.Result `json:"results,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// SearchRecord pairs an executed query with its structured results.
type SearchRecord struct {
	Query   string             `json:"query"`
	Results []websearch.Result `json:"results"`
}

// State is the complete conversation state threaded through every step.
// Steps receive it by value and must return the full next state; partial
// updates are impossible by construction.
type State struct {
	UserID         string         `json:"user_id,omitempty"`
	Turns          []Turn         `json:"turns"`
	OriginalQuery  string         `json:"original_query,omitempty"`
	PlannedQueries []string       `json:"planned_queries,omitempty"`
	SearchCount    int            `json:"search_count"`
	SearchResults  []SearchRecord `json:"search_results,omitempty"`
	NeedsSearch    bool           `json:"needs_search"`
	UserFeedback   string         `json:"user_feedback,omitempty"`
}

// Append returns a copy of the state with the given turns added. The turn
// slice is copied so the previous state value stays untouched.
func (s State) Append(turns ...Turn) State {
	out := make([]Turn, 0, len(s.Turns)+len(turns))
	out = append(out, s.Turns...)
	out = append(out, turns...)
	s.Turns = out
	return s
}

// LastUserTurn returns the most recent user turn, if any.
func (s State) LastUserTurn() (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleUser {
			return s.Turns[i], true
		}
	}
	return Turn{}, false
}
