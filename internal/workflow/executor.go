package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCheckpointed is returned by Run when a step requested a Checkpoint or
// VibeCheck behavior: execution is paused, not failed. The ExecutionState
// is left exactly as it was at the pause point; calling Run again on the
// same Executor resumes from there.
var ErrCheckpointed = errors.New("workflow: execution checkpointed, call Run again to resume")

// TriggerFunc invokes an agent by id with the accumulated context of
// everything completed so far, for the Trigger module behavior.
type TriggerFunc func(ctx context.Context, agentID string, state *ExecutionState) (TaskResult, error)

// Config configures an Executor.
type Config struct {
	// Parallelism caps the number of steps launched concurrently in a
	// single round. Default 4.
	Parallelism int
	// MemoryDir is where module behaviors are read from and deleted after
	// consumption (memory/behavior.json under this directory).
	MemoryDir string
	// OnTrigger handles the Trigger module behavior. If nil, a Trigger
	// behavior is treated as a no-op Continue.
	OnTrigger TriggerFunc
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Executor runs a DAG of steps to completion, honoring dependency edges,
// a parallelism cap, and module behaviors read between rounds.
type Executor struct {
	dag    DAG
	cfg    Config
	state  *ExecutionState
	byID   map[string]Step
	order  []string // dependency-stable step order, for Loop's "steps back"
	loopN  int       // number of Loop behaviors consumed so far
	mu     sync.Mutex
}

// NewExecutor builds an Executor for dag. Step ids must be unique.
func NewExecutor(dag DAG, cfg Config) (*Executor, error) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	byID := make(map[string]Step, len(dag.Steps))
	order := make([]string, 0, len(dag.Steps))
	for _, step := range dag.Steps {
		if _, exists := byID[step.ID]; exists {
			return nil, fmt.Errorf("workflow: duplicate step id %q", step.ID)
		}
		byID[step.ID] = step
		order = append(order, step.ID)
	}
	for _, step := range dag.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("workflow: step %q depends on unknown step %q", step.ID, dep)
			}
		}
	}

	return &Executor{
		dag:   dag,
		cfg:   cfg,
		state: NewExecutionState(order),
		byID:  byID,
		order: order,
	}, nil
}

// State returns the executor's live execution state.
func (e *Executor) State() *ExecutionState {
	return e.state
}

// Run drives the workflow to completion: repeatedly computes the ready
// set, launches it concurrently up to the parallelism cap, reclassifies
// dependents as each round finishes, and consumes any module behavior
// written to memory/behavior.json before starting the next round. It
// returns when every step is Completed, Failed, or Blocked, or early with
// ErrCheckpointed if a step requested a pause.
func (e *Executor) Run(ctx context.Context) (*ExecutionState, error) {
	for {
		if ctx.Err() != nil {
			return e.state, ctx.Err()
		}

		ready := e.readyTasks()
		if len(ready) == 0 {
			break
		}

		e.runRound(ctx, ready)
		e.reclassifyDependents()

		action, err := consumeBehaviorFile(e.cfg.MemoryDir)
		if err != nil {
			return e.state, err
		}
		if action == nil {
			continue
		}
		e.cfg.Metrics.recordBehavior(action.Action)

		switch action.Action {
		case BehaviorStop:
			e.cfg.Logger.Info("workflow stopped by module behavior", "reason", action.Reason)
			return e.state, nil
		case BehaviorCheckpoint, BehaviorVibeCheck:
			e.cfg.Logger.Info("workflow paused by module behavior",
				"action", action.Action, "reason", action.Reason)
			return e.state, ErrCheckpointed
		case BehaviorTrigger:
			e.applyTrigger(action)
		case BehaviorLoop:
			e.applyLoop(action)
		case BehaviorContinue:
			// fall through to next round
		default:
			e.cfg.Logger.Warn("unrecognized module behavior action", "action", action.Action)
		}
	}

	return e.state, nil
}

// readyTasks returns every step whose status is Pending and whose
// dependencies are all Completed.
func (e *Executor) readyTasks() []Step {
	var ready []Step
	for _, id := range e.order {
		if e.state.GetStatus(id) != TaskPending {
			continue
		}
		if e.dependenciesSatisfied(id) {
			ready = append(ready, e.byID[id])
		}
	}
	return ready
}

func (e *Executor) dependenciesSatisfied(stepID string) bool {
	for _, dep := range e.byID[stepID].Dependencies {
		if !e.state.IsCompleted(dep) {
			return false
		}
	}
	return true
}

// runRound launches every step in ready concurrently, bounded by the
// configured parallelism, and waits for all of them to finish.
func (e *Executor) runRound(ctx context.Context, ready []Step) {
	sem := make(chan struct{}, e.cfg.Parallelism)
	var wg sync.WaitGroup

	for _, step := range ready {
		wg.Add(1)
		sem <- struct{}{}
		e.state.MarkRunning(step.ID)
		e.cfg.Metrics.recordStarted()

		go func(s Step) {
			defer wg.Done()
			defer func() { <-sem }()
			e.runStep(ctx, s)
		}(step)
	}

	wg.Wait()
}

func (e *Executor) runStep(ctx context.Context, step Step) {
	start := time.Now()
	if step.Run == nil {
		result := NewFailureResult(step.AgentID, "workflow: step has no Run function", start, time.Now())
		e.state.MarkFailed(step.ID, result)
		e.cfg.Metrics.recordFailed()
		return
	}

	result, err := step.Run(ctx, step)
	if err != nil && result.ErrorMessage == "" {
		result.ErrorMessage = err.Error()
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = start
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}
	if result.AgentID == "" {
		result.AgentID = step.AgentID
	}

	if !result.Succeeded() {
		e.state.MarkFailed(step.ID, result)
		e.cfg.Metrics.recordFailed()
		e.cfg.Logger.Warn("workflow step failed", "step", step.ID, "error", result.ErrorMessage)
		return
	}
	e.state.MarkCompleted(step.ID, result)
	e.cfg.Metrics.recordCompleted()
}

// reclassifyDependents marks Blocked every pending step that transitively
// depends on a failed or blocked step.
func (e *Executor) reclassifyDependents() {
	changed := true
	for changed {
		changed = false
		for _, id := range e.order {
			if e.state.GetStatus(id) != TaskPending {
				continue
			}
			for _, dep := range e.byID[id].Dependencies {
				status := e.state.GetStatus(dep)
				if status == TaskFailed || status == TaskBlocked {
					e.state.MarkBlocked(id)
					e.cfg.Metrics.recordBlocked()
					changed = true
					break
				}
			}
		}
	}
}

func (e *Executor) applyTrigger(action *BehaviorAction) {
	if action.TriggerAgentID == "" {
		e.cfg.Logger.Warn("trigger behavior missing trigger_agent_id")
		return
	}
	triggerID := fmt.Sprintf("trigger:%s:%d", action.TriggerAgentID, len(e.order))
	deps := append([]string(nil), e.state.CompletedTasks()...)

	onTrigger := e.cfg.OnTrigger
	step := Step{
		ID:           triggerID,
		AgentID:      action.TriggerAgentID,
		Dependencies: deps,
		Run: func(ctx context.Context, s Step) (TaskResult, error) {
			if onTrigger == nil {
				return NewSuccessResult(s.AgentID, "", time.Now(), time.Now()), nil
			}
			return onTrigger(ctx, s.AgentID, e.state)
		},
	}

	e.byID[step.ID] = step
	e.order = append(e.order, step.ID)
	e.dag.Steps = append(e.dag.Steps, step)
	e.state.statusMu.Lock()
	e.state.status[step.ID] = TaskPending
	e.state.statusMu.Unlock()
}

// applyLoop rewinds the last action.Steps completed steps back to Pending
// so they run again, skipping any id listed in action.Skip, bounded by
// action.MaxIter total Loop invocations.
func (e *Executor) applyLoop(action *BehaviorAction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if action.MaxIter > 0 && e.loopN >= action.MaxIter {
		e.cfg.Logger.Warn("loop behavior exceeded max_iter, continuing instead",
			"max_iter", action.MaxIter)
		return
	}
	e.loopN++

	skip := make(map[string]struct{}, len(action.Skip))
	for _, id := range action.Skip {
		skip[id] = struct{}{}
	}

	steps := action.Steps
	if steps <= 0 {
		steps = 1
	}

	completedInOrder := e.completedInExecutionOrder()
	rewound := 0
	for i := len(completedInOrder) - 1; i >= 0 && rewound < steps; i-- {
		id := completedInOrder[i]
		if _, skipped := skip[id]; skipped {
			continue
		}
		e.resetStep(id)
		rewound++
	}
}

// completedInExecutionOrder returns completed step ids in their original
// DAG order (a stable proxy for "execution order" since this executor
// runs a round at a time, not a true timeline).
func (e *Executor) completedInExecutionOrder() []string {
	completed := make(map[string]struct{})
	for _, id := range e.state.CompletedTasks() {
		completed[id] = struct{}{}
	}
	ordered := make([]string, 0, len(completed))
	for _, id := range e.order {
		if _, ok := completed[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

func (e *Executor) resetStep(stepID string) {
	e.state.statusMu.Lock()
	e.state.status[stepID] = TaskPending
	e.state.statusMu.Unlock()

	e.state.completedMu.Lock()
	delete(e.state.completed, stepID)
	e.state.completedMu.Unlock()

	e.state.failedMu.Lock()
	delete(e.state.failed, stepID)
	e.state.failedMu.Unlock()
}
