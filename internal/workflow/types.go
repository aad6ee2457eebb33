// Package workflow implements the DAG-based workflow executor: a set of
// steps with dependency edges, run to completion with a bounded
// parallelism cap, plus the module-behavior protocol that lets a running
// step steer the executor (loop back, trigger another agent, checkpoint,
// or stop) by writing a small JSON file to its working memory.
package workflow

import (
	"context"
	"time"
)

// TaskStatus is the lifecycle state of one workflow step.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskBlocked   TaskStatus = "blocked"
)

// TaskResult captures the outcome of one executed step.
type TaskResult struct {
	Output       string
	Commits      []string
	TestResults  string
	StartedAt    time.Time
	CompletedAt  time.Time
	AgentID      string
	ErrorMessage string
}

// NewSuccessResult builds a TaskResult for a step that completed normally.
func NewSuccessResult(agentID, output string, startedAt, completedAt time.Time) TaskResult {
	return TaskResult{
		Output:      output,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		AgentID:     agentID,
	}
}

// NewFailureResult builds a TaskResult for a step that errored out.
func NewFailureResult(agentID, errMsg string, startedAt, completedAt time.Time) TaskResult {
	return TaskResult{
		ErrorMessage: errMsg,
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		AgentID:      agentID,
	}
}

// Succeeded reports whether the result represents a successful run.
func (r TaskResult) Succeeded() bool {
	return r.ErrorMessage == ""
}

// Duration returns the wall-clock time the step took.
func (r TaskResult) Duration() time.Duration {
	if r.CompletedAt.Before(r.StartedAt) {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Step is one node in the workflow DAG.
type Step struct {
	ID           string
	AgentID      string
	Dependencies []string
	Run          StepFunc
}

// StepFunc executes one step's work, returning its result. Implementations
// should honor ctx cancellation promptly.
type StepFunc func(ctx context.Context, step Step) (TaskResult, error)

// DAG is a workflow's step set and dependency edges.
type DAG struct {
	Steps []Step
}
