// Package agent wires the research workflow: classify the query, plan
// searches, let the user (or the episodic advisor) review the plan, execute
// the searches and synthesize an answer.
package agent

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"quester/config"
	"quester/internal/memory"
	"quester/internal/telemetry"
	"quester/internal/workflow"
	"quester/provider"
	"quester/tools/webfetch"
	"quester/tools/websearch"
)

// Step names, shared with the snapshot's next_step field.
const (
	StepClassification  = "classification"
	StepPlanning        = "planning"
	StepMemoryCheck     = "memory_check"
	StepHumanReview     = "human_review"
	StepProcessFeedback = "process_feedback"
	StepSearch          = "search"
	StepPreSummarize    = "pre_summarize"
	StepSummarize       = "summarize"
	StepDirectAnswer    = "direct_answer"
)

// Agent owns the engine and the collaborators the steps need.
type Agent struct {
	engine    *workflow.Engine
	llm       provider.LLMProvider
	searcher  websearch.Searcher
	fetcher   webfetch.Fetcher
	advisor   memory.Advisor
	telemetry *telemetry.Telemetry
	cfg       *config.Config
	logger    *log.Logger
	now       func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithFetcher enables search-result content enrichment.
func WithFetcher(f webfetch.Fetcher) Option {
	return func(a *Agent) { a.fetcher = f }
}

// WithTelemetry attaches metrics recording.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(a *Agent) { a.telemetry = t }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New assembles the agent and registers the workflow graph on a fresh engine
// over the given snapshot store.
func New(cfg *config.Config, llm provider.LLMProvider, searcher websearch.Searcher,
	advisor memory.Advisor, store workflow.SnapshotStore, opts ...Option) *Agent {

	a := &Agent{
		llm:      llm,
		searcher: searcher,
		advisor:  advisor,
		cfg:      cfg,
		logger:   log.New(os.Stdout, "[AGENT] ", log.LstdFlags),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	engineOpts := []workflow.Option{workflow.WithLogger(a.logger)}
	if a.telemetry != nil {
		engineOpts = append(engineOpts, workflow.WithMetrics(a.telemetry))
	}
	eng := workflow.New(store, engineOpts...)

	mustRegister(eng.RegisterStep(StepClassification, a.classify))
	mustRegister(eng.RegisterStep(StepPlanning, a.plan))
	mustRegister(eng.RegisterStep(StepMemoryCheck, a.memoryCheck))
	mustRegister(eng.RegisterStep(StepHumanReview, a.humanReview))
	mustRegister(eng.RegisterStep(StepProcessFeedback, a.processFeedback))
	mustRegister(eng.RegisterStep(StepSearch, a.search))
	mustRegister(eng.RegisterStep(StepPreSummarize, a.preSummarize))
	mustRegister(eng.RegisterStep(StepSummarize, a.summarize))
	mustRegister(eng.RegisterStep(StepDirectAnswer, a.directAnswer))

	mustRegister(eng.RegisterRouter(StepClassification, afterClassification))
	mustRegister(eng.RegisterRouter(StepPlanning, func(workflow.State) string { return StepMemoryCheck }))
	mustRegister(eng.RegisterRouter(StepMemoryCheck, afterMemoryCheck))
	mustRegister(eng.RegisterRouter(StepHumanReview, func(workflow.State) string { return StepProcessFeedback }))
	mustRegister(eng.RegisterRouter(StepProcessFeedback, afterProcessFeedback))
	mustRegister(eng.RegisterRouter(StepSearch, afterSearch))
	mustRegister(eng.RegisterRouter(StepPreSummarize, func(workflow.State) string { return StepSummarize }))

	eng.SetEntry(StepClassification)
	a.engine = eng
	return a
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// Run executes a new pass for the given thread. If the thread already has a
// completed run, its conversation state carries over and the new message is
// appended as a user turn.
func (a *Agent) Run(ctx context.Context, runID, userID, message string, sink workflow.Sink) (workflow.Snapshot, error) {
	st := workflow.State{}
	if snap, ok, err := a.engine.Snapshot(ctx, runID); err != nil {
		return workflow.Snapshot{}, err
	} else if ok {
		st = snap.State
	}
	if userID != "" {
		st.UserID = userID
	}
	st = st.Append(workflow.Turn{
		ID:        uuid.NewString(),
		Role:      workflow.RoleUser,
		Content:   message,
		CreatedAt: a.now().UTC(),
	})
	return a.engine.Start(ctx, runID, st, sink)
}

// Resume feeds external input into a suspended run.
func (a *Agent) Resume(ctx context.Context, runID, value string, sink workflow.Sink) (workflow.Snapshot, error) {
	return a.engine.Resume(ctx, runID, value, sink)
}

// PendingInterrupt reports whether the run is suspended, and the prompt it
// is waiting on.
func (a *Agent) PendingInterrupt(ctx context.Context, runID string) (string, bool, error) {
	snap, ok, err := a.engine.Snapshot(ctx, runID)
	if err != nil || !ok {
		return "", false, err
	}
	if snap.Status != workflow.StatusSuspended {
		return "", false, nil
	}
	return snap.Prompt, true, nil
}

// SnapshotFor returns the persisted snapshot of a thread.
func (a *Agent) SnapshotFor(ctx context.Context, runID string) (workflow.Snapshot, bool, error) {
	return a.engine.Snapshot(ctx, runID)
}

func (a *Agent) generate(ctx context.Context, model string, msgs []provider.Message) (string, error) {
	began := a.now()
	out, err := a.llm.Generate(ctx, model, msgs)
	if a.telemetry != nil {
		a.telemetry.RecordLLM(model, time.Since(began), err)
	}
	return out, err
}

func (a *Agent) generateStream(ctx context.Context, model string, msgs []provider.Message, onDelta func(string)) (string, error) {
	began := a.now()
	out, err := a.llm.GenerateStream(ctx, model, msgs, onDelta)
	if a.telemetry != nil {
		a.telemetry.RecordLLM(model, time.Since(began), err)
	}
	return out, err
}

// modelFor resolves a routing entry, falling back to the configured default.
func (a *Agent) modelFor(route string) string {
	if route != "" {
		return route
	}
	return a.cfg.LLM.Routing.Fallback
}

// answerStreamer emits incremental answer events with a cursor that tracks
// the total emitted length. The cursor restarts with each generation.
func answerStreamer(sc *workflow.StepContext) func(string) {
	cursor := 0
	return func(delta string) {
		if delta == "" {
			return
		}
		cursor += len(delta)
		sc.Emit(workflow.Event{Type: workflow.EventAnswer, Content: delta, Cursor: cursor})
	}
}
