package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Status of a run as persisted in its snapshot.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// End is the terminal routing target. A router returning End (or an empty
// string) finishes the run.
const End = "__end__"

var (
	ErrUnknownRun    = errors.New("workflow: unknown run")
	ErrNotSuspended  = errors.New("workflow: run is not suspended")
	ErrRunActive     = errors.New("workflow: run already executing")
	ErrUnknownStep   = errors.New("workflow: unknown step")
	ErrNoEntry       = errors.New("workflow: entry step not set")
	ErrStepsRegistry = errors.New("workflow: steps cannot be registered after first run")
)

// Interrupt is returned by a step to suspend the run until external input
// arrives. The engine persists the suspension and emits an interrupt event;
// it is not a failure.
type Interrupt struct {
	Prompt string
}

func (i *Interrupt) Error() string { return "workflow interrupted: awaiting external input" }

// Snapshot is the durable record of a run taken at every step boundary.
// A fresh Engine over the same SnapshotStore can resume a suspended run.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	NextStep  string    `json:"next_step,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStore persists run snapshots keyed by run id.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	GetSnapshot(ctx context.Context, runID string) (Snapshot, bool, error)
}

// StepContext carries per-invocation facilities into a step.
type StepContext struct {
	RunID  string
	resume *string
	sink   Sink
}

// Emit forwards an event to the run's sink, if one is attached.
func (sc *StepContext) Emit(ev Event) {
	if sc.sink != nil {
		sc.sink(ev)
	}
}

// ResumeValue reports the external input this step was resumed with. It is
// only set on the first step executed by Resume.
func (sc *StepContext) ResumeValue() (string, bool) {
	if sc.resume == nil {
		return "", false
	}
	return *sc.resume, true
}

// StepFunc executes one step. It receives the complete state and must return
// the complete next state.
type StepFunc func(ctx context.Context, sc *StepContext, st State) (State, error)

// RouterFunc picks the next step after its step completed. Returning End
// terminates the run. A step with no router is terminal.
type RouterFunc func(st State) string

// Metrics receives engine-level observations. Implemented by the telemetry
// package; a nil Metrics disables recording.
type Metrics interface {
	RecordStep(step string, d time.Duration, err error)
	RecordRun(status Status)
}

// Engine drives registered steps over a SnapshotStore. Steps and routers are
// registered once at construction time, before the first run.
type Engine struct {
	store   SnapshotStore
	logger  *log.Logger
	metrics Metrics

	entry   string
	steps   map[string]StepFunc
	routers map[string]RouterFunc
	sealed  bool

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over the given snapshot store.
func New(store SnapshotStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		logger:  log.New(os.Stdout, "[ENGINE] ", log.LstdFlags),
		steps:   map[string]StepFunc{},
		routers: map[string]RouterFunc{},
		active:  map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterStep adds a named step. Registration is rejected once a run has
// started.
func (e *Engine) RegisterStep(name string, fn StepFunc) error {
	if e.sealed {
		return ErrStepsRegistry
	}
	if name == "" || name == End {
		return fmt.Errorf("workflow: invalid step name %q", name)
	}
	e.steps[name] = fn
	return nil
}

// RegisterRouter adds the router consulted after the named step completes.
func (e *Engine) RegisterRouter(step string, fn RouterFunc) error {
	if e.sealed {
		return ErrStepsRegistry
	}
	e.routers[step] = fn
	return nil
}

// SetEntry names the step new runs begin at.
func (e *Engine) SetEntry(name string) { e.entry = name }

// Start executes a new pass over the graph from the entry step. The state is
// the caller's starting state (typically the prior conversation plus the new
// user turn). The returned snapshot reports how the pass ended: completed,
// suspended or failed.
func (e *Engine) Start(ctx context.Context, runID string, st State, sink Sink) (Snapshot, error) {
	if e.entry == "" {
		return Snapshot{}, ErrNoEntry
	}
	if err := e.acquire(runID); err != nil {
		return Snapshot{}, err
	}
	defer e.release(runID)
	return e.dispatch(ctx, runID, e.entry, st, nil, sink)
}

// Resume continues a suspended run, re-executing the suspended step with the
// resume value visible through StepContext. Resuming a run that is not
// suspended returns ErrNotSuspended.
func (e *Engine) Resume(ctx context.Context, runID string, value string, sink Sink) (Snapshot, error) {
	snap, ok, err := e.store.GetSnapshot(ctx, runID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("workflow: loading snapshot: %w", err)
	}
	if !ok {
		return Snapshot{}, ErrUnknownRun
	}
	if snap.Status != StatusSuspended {
		return Snapshot{}, ErrNotSuspended
	}
	if err := e.acquire(runID); err != nil {
		return Snapshot{}, err
	}
	defer e.release(runID)
	return e.dispatch(ctx, runID, snap.NextStep, snap.State, &value, sink)
}

// Snapshot returns the persisted snapshot for a run.
func (e *Engine) Snapshot(ctx context.Context, runID string) (Snapshot, bool, error) {
	return e.store.GetSnapshot(ctx, runID)
}

func (e *Engine) acquire(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[runID]; busy {
		return ErrRunActive
	}
	e.active[runID] = struct{}{}
	e.sealed = true
	return nil
}

func (e *Engine) release(runID string) {
	e.mu.Lock()
	delete(e.active, runID)
	e.mu.Unlock()
}

func (e *Engine) dispatch(ctx context.Context, runID, step string, st State, resume *string, sink Sink) (Snapshot, error) {
	for step != "" && step != End {
		fn, ok := e.steps[step]
		if !ok {
			return e.fail(ctx, runID, st, sink, fmt.Errorf("%w: %s", ErrUnknownStep, step))
		}
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, runID, st, sink, err)
		}

		sc := &StepContext{RunID: runID, resume: resume, sink: sink}
		resume = nil

		began := time.Now()
		next, err := fn(ctx, sc, st)
		if e.metrics != nil {
			e.metrics.RecordStep(step, time.Since(began), err)
		}

		var intr *Interrupt
		if errors.As(err, &intr) {
			snap := e.snapshot(runID, StatusSuspended, step, intr.Prompt, next)
			if serr := e.store.SaveSnapshot(ctx, snap); serr != nil {
				return e.fail(ctx, runID, next, sink, fmt.Errorf("persisting suspension: %w", serr))
			}
			if sink != nil {
				sink(Event{Type: EventInterrupt, Content: intr.Prompt, Step: step})
			}
			e.record(StatusSuspended)
			e.logger.Printf("run %s suspended at %s", runID, step)
			return snap, nil
		}
		if err != nil {
			return e.fail(ctx, runID, st, sink, fmt.Errorf("step %s: %w", step, err))
		}

		st = next
		step = e.route(step, st)

		status, nextStep := StatusRunning, step
		if step == "" || step == End {
			status, nextStep = StatusCompleted, ""
		}
		snap := e.snapshot(runID, status, nextStep, "", st)
		if serr := e.store.SaveSnapshot(ctx, snap); serr != nil {
			return e.fail(ctx, runID, st, sink, fmt.Errorf("persisting snapshot: %w", serr))
		}
		if status == StatusCompleted {
			e.record(StatusCompleted)
			return snap, nil
		}
	}
	snap := e.snapshot(runID, StatusCompleted, "", "", st)
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		return e.fail(ctx, runID, st, sink, fmt.Errorf("persisting snapshot: %w", err))
	}
	e.record(StatusCompleted)
	return snap, nil
}

func (e *Engine) route(step string, st State) string {
	if r, ok := e.routers[step]; ok {
		return r(st)
	}
	return End
}

func (e *Engine) fail(ctx context.Context, runID string, st State, sink Sink, err error) (Snapshot, error) {
	snap := e.snapshot(runID, StatusFailed, "", "", st)
	if serr := e.store.SaveSnapshot(ctx, snap); serr != nil {
		e.logger.Printf("run %s: persisting failure snapshot: %v", runID, serr)
	}
	if sink != nil {
		sink(Event{Type: EventError, Message: err.Error()})
	}
	e.record(StatusFailed)
	e.logger.Printf("run %s failed: %v", runID, err)
	return snap, err
}

func (e *Engine) snapshot(runID string, status Status, next, prompt string, st State) Snapshot {
	return Snapshot{
		RunID:     runID,
		Status:    status,
		NextStep:  next,
		Prompt:    prompt,
		State:     st,
		UpdatedAt: time.Now().UTC(),
	}
}

func (e *Engine) record(status Status) {
	if e.metrics != nil {
		e.metrics.RecordRun(status)
	}
}
