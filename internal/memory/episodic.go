// Package memory implements the episodic review advisor: it records how the
// user handled past plan reviews and recommends skipping the review when the
// history is consistent enough.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"quester/provider"
)

// Review decisions a user can take on a planned set of searches.
const (
	DecisionApprove  = "approve"
	DecisionSkip     = "skip"
	DecisionFeedback = "feedback"
)

// Episode is one recorded review interaction.
type Episode struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	OriginalQuery   string    `json:"original_query"`
	PlannedSearches []string  `json:"planned_searches"`
	Decision        string    `json:"decision"`
	FeedbackText    string    `json:"feedback_text,omitempty"`
	DecisionContext string    `json:"decision_context"`
	QueryComplexity string    `json:"query_complexity"` // simple, moderate, complex
	SearchQuality   string    `json:"search_quality"`   // focused, broad, specific, comprehensive
	CreatedAt       time.Time `json:"created_at"`
}

// SearchableContent renders the episode as the text block used both for
// similarity indexing and for the decision prompt.
func (e Episode) SearchableContent() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", e.OriginalQuery)
	fmt.Fprintf(&b, "Planned searches: %s\n", strings.Join(e.PlannedSearches, ", "))
	fmt.Fprintf(&b, "Complexity: %s, Search quality: %s\n", e.QueryComplexity, e.SearchQuality)
	fmt.Fprintf(&b, "User decision: %s\n", e.Decision)
	if e.FeedbackText != "" {
		fmt.Fprintf(&b, "User feedback: %s\n", e.FeedbackText)
	}
	fmt.Fprintf(&b, "Context: %s", e.DecisionContext)
	return b.String()
}

// EpisodeStore persists and retrieves episodes, namespaced by user.
type EpisodeStore interface {
	Insert(ctx context.Context, ep Episode) error
	Search(ctx context.Context, userID, query string, limit int) ([]Episode, error)
}

// Advisor recommends a review decision, or defers to the human.
type Advisor interface {
	// Recommend returns DecisionApprove, DecisionSkip or "" (defer to human).
	Recommend(ctx context.Context, userID, query string, planned []string) string
	// Record stores a completed review interaction, best effort.
	Record(ctx context.Context, userID, query string, planned []string, decision, feedback string)
}

// NoopAdvisor always defers. Selected at construction time when episodic
// memory is disabled so callers never branch on capability.
type NoopAdvisor struct{}

func (NoopAdvisor) Recommend(context.Context, string, string, []string) string { return "" }
func (NoopAdvisor) Record(context.Context, string, string, []string, string, string) {
}

const episodicDecisionTemplate = `< Role >
You are an episodic memory decision maker who determines whether to auto-approve, auto-skip, or proceed to human review based on similar past user interactions.
</ Role >

< Current Situation >
Query: %s
Planned searches: %s
</ Current Situation >

< Similar Past Episodes >
%s
</ Similar Past Episodes >

< Instructions >
Analyze the similar past episodes above and determine the best action for the current situation:

1. Pattern Analysis:
   - Compare current query similarity and complexity to past episodes
   - Evaluate search quality and scope patterns from previous interactions
   - Assess user decision consistency in similar situations

2. Decision Making:
   - "approve" - Choose this if user consistently approved similar queries/searches in the past
   - "skip" - Choose this if user consistently skipped to direct answer for similar queries
   - "review" - Choose this if patterns are unclear or confidence is insufficient
</ Instructions >

Respond ONLY with valid JSON: {"decision": "approve|skip|review", "reasoning": "...", "confidence": 0.0}`

// EpisodicAdvisor consults past episodes plus an LLM judgement. Every failure
// path degrades to deferring; the advisor never blocks a run.
type EpisodicAdvisor struct {
	store       EpisodeStore
	llm         provider.LLMProvider
	model       string
	logger      *log.Logger
	minEpisodes int
	confidence  float64
	topK        int
}

// EpisodicOption configures an EpisodicAdvisor.
type EpisodicOption func(*EpisodicAdvisor)

func WithThresholds(minEpisodes int, confidence float64) EpisodicOption {
	return func(a *EpisodicAdvisor) {
		if minEpisodes > 0 {
			a.minEpisodes = minEpisodes
		}
		if confidence > 0 {
			a.confidence = confidence
		}
	}
}

func WithTopK(k int) EpisodicOption {
	return func(a *EpisodicAdvisor) {
		if k > 0 {
			a.topK = k
		}
	}
}

func WithAdvisorLogger(l *log.Logger) EpisodicOption {
	return func(a *EpisodicAdvisor) { a.logger = l }
}

// NewEpisodicAdvisor builds an advisor over the given store and model.
func NewEpisodicAdvisor(store EpisodeStore, llm provider.LLMProvider, model string, opts ...EpisodicOption) *EpisodicAdvisor {
	a := &EpisodicAdvisor{
		store:       store,
		llm:         llm,
		model:       model,
		logger:      log.New(os.Stdout, "[MEMORY] ", log.LstdFlags),
		minEpisodes: 3,
		confidence:  0.8,
		topK:        5,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type episodicDecision struct {
	Decision   string  `json:"decision"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

func (a *EpisodicAdvisor) Recommend(ctx context.Context, userID, query string, planned []string) string {
	searchContent := fmt.Sprintf("Query: %s\nPlanned searches: %s", query, strings.Join(planned, ", "))
	episodes, err := a.store.Search(ctx, userID, searchContent, a.topK)
	if err != nil {
		a.logger.Printf("episode search failed, deferring to human: %v", err)
		return ""
	}
	if len(episodes) < a.minEpisodes {
		a.logger.Printf("insufficient episodic data (%d episodes), deferring to human", len(episodes))
		return ""
	}

	var episodesContext strings.Builder
	for i, ep := range episodes {
		if i > 0 {
			episodesContext.WriteString("\n\n")
		}
		fmt.Fprintf(&episodesContext, "Episode %d:\n%s", i+1, ep.SearchableContent())
	}

	prompt := fmt.Sprintf(episodicDecisionTemplate, query, strings.Join(planned, ", "), episodesContext.String())
	raw, err := a.llm.Generate(ctx, a.model, []provider.Message{{Role: "user", Content: prompt}})
	if err != nil {
		a.logger.Printf("decision call failed, deferring to human: %v", err)
		return ""
	}

	var decision episodicDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decision); err != nil {
		a.logger.Printf("unparseable decision %q, deferring to human", raw)
		return ""
	}
	a.logger.Printf("episodic decision %q (confidence %.2f, %d episodes): %s",
		decision.Decision, decision.Confidence, len(episodes), decision.Reasoning)

	// The confidence gate lives here, never inside the model call.
	if decision.Confidence < a.confidence {
		return ""
	}
	switch decision.Decision {
	case DecisionApprove, DecisionSkip:
		return decision.Decision
	default:
		return ""
	}
}

func (a *EpisodicAdvisor) Record(ctx context.Context, userID, query string, planned []string, decision, feedback string) {
	ep := Episode{
		ID:              uuid.NewString(),
		UserID:          userID,
		OriginalQuery:   query,
		PlannedSearches: planned,
		Decision:        decision,
		FeedbackText:    feedback,
		QueryComplexity: assessComplexity(query),
		SearchQuality:   assessSearchQuality(planned),
		CreatedAt:       time.Now().UTC(),
	}
	ep.DecisionContext = decisionContext(ep)
	if err := a.store.Insert(ctx, ep); err != nil {
		a.logger.Printf("storing episode failed: %v", err)
		return
	}
	a.logger.Printf("stored %s episode for %q", decision, clip(query, 50))
}

func assessComplexity(query string) string {
	q := strings.ToLower(query)
	for _, w := range []string{"weather", "time", "what is"} {
		if strings.Contains(q, w) {
			return "simple"
		}
	}
	for _, w := range []string{"compare", "analyze", "research", "comprehensive"} {
		if strings.Contains(q, w) {
			return "complex"
		}
	}
	return "moderate"
}

func assessSearchQuality(searches []string) string {
	switch {
	case len(searches) <= 1:
		return "focused"
	case len(searches) >= 4:
		return "comprehensive"
	}
	for _, s := range searches {
		if len(s) > 50 {
			return "specific"
		}
	}
	return "broad"
}

func decisionContext(ep Episode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User %sed a %s query with %d %s searches. ",
		ep.Decision, ep.QueryComplexity, len(ep.PlannedSearches), ep.SearchQuality)
	if ep.FeedbackText != "" {
		fmt.Fprintf(&b, "Feedback: %s. ", ep.FeedbackText)
	}
	switch ep.Decision {
	case DecisionApprove:
		b.WriteString("Searches were well-aligned with user intent.")
	case DecisionSkip:
		b.WriteString("User preferred direct answer without search.")
	default:
		b.WriteString("User provided feedback to improve searches.")
	}
	return b.String()
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

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
