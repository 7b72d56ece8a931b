package workflow

import "quester/tools/websearch"

// EventType enumerates the stream relay vocabulary. Consumers (the SSE
// handler, the chat CLI) switch on these values.
type EventType string

const (
	EventStart              EventType = "start"
	EventStatus             EventType = "status"
	EventPlanningSummary    EventType = "planning_summary"
	EventPlannedQuery       EventType = "planned_query"
	EventSummarizationStart EventType = "summarization_start"
	EventAnswer             EventType = "answer"
	EventSearchResults      EventType = "search_results"
	EventToolMessage        EventType = "tool_message"
	EventInterrupt          EventType = "interrupt"
	EventError              EventType = "error"
)

// Event is a single progress notification emitted while a run executes.
// Answer events carry an incremental Content delta plus Cursor, the total
// length of the answer emitted so far. Cursor restarts at each generation.
type Event struct {
	Type    EventType          `json:"type"`
	Content string             `json:"content,omitempty"`
	Message string             `json:"message,omitempty"`
	Cursor  int                `json:"cursor,omitempty"`
	Step    string             `json:"step,omitempty"`
	Results []websearch.Result `json:"results,omitempty"`
	Turn    *Turn              `json:"turn,omitempty"`
}

// Sink receives events in emission order. A nil sink discards them.
type Sink func(Event)
