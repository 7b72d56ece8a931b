package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"quester/provider"
)

type stubEpisodeStore struct {
	episodes  []Episode
	searchErr error
	insertErr error
	inserted  []Episode
}

func (s *stubEpisodeStore) Insert(_ context.Context, ep Episode) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, ep)
	return nil
}

func (s *stubEpisodeStore) Search(_ context.Context, _, _ string, _ int) ([]Episode, error) {
	return s.episodes, s.searchErr
}

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Generate(context.Context, string, []provider.Message) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubLLM) GenerateStream(context.Context, string, []provider.Message, func(string)) (string, error) {
	return s.reply, s.err
}

func pastEpisodes(n int) []Episode {
	eps := make([]Episode, 0, n)
	for i := 0; i < n; i++ {
		eps = append(eps, Episode{
			ID:              fmt.Sprintf("ep-%d", i),
			UserID:          "u1",
			OriginalQuery:   "research ai chips",
			PlannedSearches: []string{"ai chip vendors", "ai chip benchmarks"},
			Decision:        DecisionApprove,
			QueryComplexity: "complex",
			SearchQuality:   "broad",
		})
	}
	return eps
}

func quietAdvisor(store EpisodeStore, llm provider.LLMProvider) *EpisodicAdvisor {
	return NewEpisodicAdvisor(store, llm, "memory",
		WithAdvisorLogger(log.New(io.Discard, "", 0)))
}

func TestRecommendNeedsEnoughEpisodes(t *testing.T) {
	llm := &stubLLM{reply: `{"decision": "approve", "reasoning": "consistent", "confidence": 0.95}`}
	adv := quietAdvisor(&stubEpisodeStore{episodes: pastEpisodes(2)}, llm)

	if got := adv.Recommend(context.Background(), "u1", "research ai chips", []string{"q"}); got != "" {
		t.Fatalf("expected deferral with 2 episodes, got %q", got)
	}
	if llm.calls != 0 {
		t.Fatalf("model must not be consulted below the episode floor")
	}
}

func TestRecommendApproveAboveThresholds(t *testing.T) {
	llm := &stubLLM{reply: `{"decision": "approve", "reasoning": "consistent approvals", "confidence": 0.9}`}
	adv := quietAdvisor(&stubEpisodeStore{episodes: pastEpisodes(3)}, llm)

	if got := adv.Recommend(context.Background(), "u1", "research ai chips", []string{"q"}); got != DecisionApprove {
		t.Fatalf("expected approve, got %q", got)
	}
}

func TestRecommendLowConfidenceDefers(t *testing.T) {
	llm := &stubLLM{reply: `{"decision": "approve", "reasoning": "maybe", "confidence": 0.6}`}
	adv := quietAdvisor(&stubEpisodeStore{episodes: pastEpisodes(3)}, llm)

	if got := adv.Recommend(context.Background(), "u1", "q", []string{"q"}); got != "" {
		t.Fatalf("low confidence must defer, got %q", got)
	}
}

func TestRecommendReviewDecisionDefers(t *testing.T) {
	llm := &stubLLM{reply: `{"decision": "review", "reasoning": "mixed history", "confidence": 0.99}`}
	adv := quietAdvisor(&stubEpisodeStore{episodes: pastEpisodes(3)}, llm)

	if got := adv.Recommend(context.Background(), "u1", "q", []string{"q"}); got != "" {
		t.Fatalf("review decision must defer, got %q", got)
	}
}

func TestRecommendFailuresDefer(t *testing.T) {
	cases := []struct {
		name  string
		store *stubEpisodeStore
		llm   *stubLLM
	}{
		{"store error", &stubEpisodeStore{searchErr: errors.New("down")}, &stubLLM{}},
		{"model error", &stubEpisodeStore{episodes: pastEpisodes(3)}, &stubLLM{err: errors.New("timeout")}},
		{"garbage reply", &stubEpisodeStore{episodes: pastEpisodes(3)}, &stubLLM{reply: "not json at all"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adv := quietAdvisor(tc.store, tc.llm)
			if got := adv.Recommend(context.Background(), "u1", "q", []string{"q"}); got != "" {
				t.Fatalf("expected deferral, got %q", got)
			}
		})
	}
}

func TestCustomThresholds(t *testing.T) {
	llm := &stubLLM{reply: `{"decision": "skip", "reasoning": "always skips", "confidence": 0.7}`}
	adv := NewEpisodicAdvisor(&stubEpisodeStore{episodes: pastEpisodes(2)}, llm, "memory",
		WithThresholds(2, 0.65),
		WithAdvisorLogger(log.New(io.Discard, "", 0)))

	if got := adv.Recommend(context.Background(), "u1", "q", []string{"q"}); got != DecisionSkip {
		t.Fatalf("expected skip with relaxed thresholds, got %q", got)
	}
}

func TestRecordDerivesEpisodeTraits(t *testing.T) {
	store := &stubEpisodeStore{}
	adv := quietAdvisor(store, &stubLLM{})

	adv.Record(context.Background(), "u1", "compare cloud providers",
		[]string{"aws vs gcp pricing", "azure regions"}, DecisionFeedback, "add azure")

	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 stored episode, got %d", len(store.inserted))
	}
	ep := store.inserted[0]
	if ep.ID == "" || ep.UserID != "u1" {
		t.Fatalf("episode identity: %+v", ep)
	}
	if ep.QueryComplexity != "complex" {
		t.Fatalf("complexity: %q", ep.QueryComplexity)
	}
	if ep.SearchQuality != "broad" {
		t.Fatalf("search quality: %q", ep.SearchQuality)
	}
	if !strings.Contains(ep.DecisionContext, "feedbacked a complex query") {
		t.Fatalf("decision context: %q", ep.DecisionContext)
	}
	if !strings.Contains(ep.SearchableContent(), "User feedback: add azure") {
		t.Fatalf("searchable content: %q", ep.SearchableContent())
	}
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	adv := quietAdvisor(&stubEpisodeStore{insertErr: errors.New("disk full")}, &stubLLM{})
	// Must not panic or surface the error.
	adv.Record(context.Background(), "u1", "q", []string{"q"}, DecisionApprove, "")
}

func TestAssessComplexity(t *testing.T) {
	cases := map[string]string{
		"what is the weather today":          "simple",
		"compare rust and go for services":   "complex",
		"tell me about the eiffel tower":     "moderate",
		"comprehensive research on fusion":   "complex",
		"what time is it in tokyo right now": "simple",
	}
	for query, want := range cases {
		if got := assessComplexity(query); got != want {
			t.Fatalf("assessComplexity(%q) = %q, want %q", query, got, want)
		}
	}
}

func TestAssessSearchQuality(t *testing.T) {
	long := strings.Repeat("detailed query terms ", 3)
	cases := []struct {
		searches []string
		want     string
	}{
		{[]string{"one"}, "focused"},
		{[]string{"a", "b", "c", "d"}, "comprehensive"},
		{[]string{"a", long}, "specific"},
		{[]string{"a", "b"}, "broad"},
	}
	for _, tc := range cases {
		if got := assessSearchQuality(tc.searches); got != tc.want {
			t.Fatalf("assessSearchQuality(%v) = %q, want %q", tc.searches, got, tc.want)
		}
	}
}

func TestBleveStoreRoundTrip(t *testing.T) {
	store := NewBleveStore()
	ctx := context.Background()

	eps := []Episode{
		{ID: "1", UserID: "u1", OriginalQuery: "electric vehicle market trends",
			PlannedSearches: []string{"ev sales 2026"}, Decision: DecisionApprove,
			QueryComplexity: "complex", SearchQuality: "focused"},
		{ID: "2", UserID: "u1", OriginalQuery: "sourdough bread recipe",
			PlannedSearches: []string{"sourdough starter"}, Decision: DecisionSkip,
			QueryComplexity: "simple", SearchQuality: "focused"},
		{ID: "3", UserID: "u2", OriginalQuery: "electric vehicle charging networks",
			PlannedSearches: []string{"charging map"}, Decision: DecisionApprove,
			QueryComplexity: "moderate", SearchQuality: "focused"},
	}
	for _, ep := range eps {
		ep.DecisionContext = decisionContext(ep)
		if err := store.Insert(ctx, ep); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := store.Search(ctx, "u1", "electric vehicle market", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 || got[0].ID != "1" {
		t.Fatalf("expected the ev episode first, got %+v", got)
	}
	for _, ep := range got {
		if ep.UserID != "u2" {
			continue
		}
		t.Fatalf("user isolation broken: %+v", ep)
	}

	// Unknown users have no index yet; that is not an error.
	none, err := store.Search(ctx, "ghost", "anything", 5)
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown user: %v %v", none, err)
	}
}
