package workflow

import "sync"

// ExecutionState tracks every step's status and result across the run. It
// deliberately uses four independent locks rather than one coarse mutex so
// a status read never blocks behind a result write and vice versa; callers
// see atomic snapshots of each map, not of the whole struct.
type ExecutionState struct {
	statusMu sync.RWMutex
	status   map[string]TaskStatus

	resultMu sync.RWMutex
	result   map[string]TaskResult

	completedMu sync.RWMutex
	completed   map[string]struct{}

	failedMu sync.RWMutex
	failed   map[string]struct{}
}

// NewExecutionState returns an ExecutionState with every step seeded
// Pending.
func NewExecutionState(stepIDs []string) *ExecutionState {
	s := &ExecutionState{
		status:    make(map[string]TaskStatus, len(stepIDs)),
		result:    make(map[string]TaskResult, len(stepIDs)),
		completed: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}
	for _, id := range stepIDs {
		s.status[id] = TaskPending
	}
	return s
}

// MarkRunning transitions a step to Running.
func (s *ExecutionState) MarkRunning(stepID string) {
	s.statusMu.Lock()
	s.status[stepID] = TaskRunning
	s.statusMu.Unlock()
}

// MarkCompleted records a step's success, its result, and adds it to the
// completed set.
func (s *ExecutionState) MarkCompleted(stepID string, result TaskResult) {
	s.statusMu.Lock()
	s.status[stepID] = TaskCompleted
	s.statusMu.Unlock()

	s.resultMu.Lock()
	s.result[stepID] = result
	s.resultMu.Unlock()

	s.completedMu.Lock()
	s.completed[stepID] = struct{}{}
	s.completedMu.Unlock()
}

// MarkFailed records a step's failure, its result, and adds it to the
// failed set.
func (s *ExecutionState) MarkFailed(stepID string, result TaskResult) {
	s.statusMu.Lock()
	s.status[stepID] = TaskFailed
	s.statusMu.Unlock()

	s.resultMu.Lock()
	s.result[stepID] = result
	s.resultMu.Unlock()

	s.failedMu.Lock()
	s.failed[stepID] = struct{}{}
	s.failedMu.Unlock()
}

// MarkBlocked transitions a step to Blocked: it will never run because a
// transitive dependency failed.
func (s *ExecutionState) MarkBlocked(stepID string) {
	s.statusMu.Lock()
	s.status[stepID] = TaskBlocked
	s.statusMu.Unlock()
}

// GetStatus returns a step's current status, Pending if unknown.
func (s *ExecutionState) GetStatus(stepID string) TaskStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if st, ok := s.status[stepID]; ok {
		return st
	}
	return TaskPending
}

// GetResult returns a step's recorded result, if any.
func (s *ExecutionState) GetResult(stepID string) (TaskResult, bool) {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	r, ok := s.result[stepID]
	return r, ok
}

// IsCompleted reports whether a step has completed successfully.
func (s *ExecutionState) IsCompleted(stepID string) bool {
	s.completedMu.RLock()
	defer s.completedMu.RUnlock()
	_, ok := s.completed[stepID]
	return ok
}

// IsFailed reports whether a step has failed.
func (s *ExecutionState) IsFailed(stepID string) bool {
	s.failedMu.RLock()
	defer s.failedMu.RUnlock()
	_, ok := s.failed[stepID]
	return ok
}

// CompletedTasks returns a snapshot of every completed step id.
func (s *ExecutionState) CompletedTasks() []string {
	s.completedMu.RLock()
	defer s.completedMu.RUnlock()
	ids := make([]string, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	return ids
}

// FailedTasks returns a snapshot of every failed step id.
func (s *ExecutionState) FailedTasks() []string {
	s.failedMu.RLock()
	defer s.failedMu.RUnlock()
	ids := make([]string, 0, len(s.failed))
	for id := range s.failed {
		ids = append(ids, id)
	}
	return ids
}

// CompletedCount returns the number of completed steps.
func (s *ExecutionState) CompletedCount() int {
	s.completedMu.RLock()
	defer s.completedMu.RUnlock()
	return len(s.completed)
}

// FailedCount returns the number of failed steps.
func (s *ExecutionState) FailedCount() int {
	s.failedMu.RLock()
	defer s.failedMu.RUnlock()
	return len(s.failed)
}

// RunningCount returns the number of steps currently Running.
func (s *ExecutionState) RunningCount() int {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	n := 0
	for _, st := range s.status {
		if st == TaskRunning {
			n++
		}
	}
	return n
}
