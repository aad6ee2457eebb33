package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BehaviorActionType names the way a module behavior steers the executor.
type BehaviorActionType string

const (
	BehaviorLoop       BehaviorActionType = "loop"
	BehaviorTrigger    BehaviorActionType = "trigger"
	BehaviorCheckpoint BehaviorActionType = "checkpoint"
	BehaviorContinue   BehaviorActionType = "continue"
	BehaviorStop       BehaviorActionType = "stop"
	BehaviorVibeCheck  BehaviorActionType = "vibe_check"
)

// BehaviorAction is the JSON payload a running step writes to
// memory/behavior.json to steer the executor once the step finishes.
type BehaviorAction struct {
	Action BehaviorActionType `json:"action"`
	Reason string              `json:"reason,omitempty"`

	// TriggerAgentID names the agent to invoke for BehaviorTrigger.
	TriggerAgentID string `json:"trigger_agent_id,omitempty"`

	// Steps, MaxIter, and Skip configure BehaviorLoop: step back Steps
	// positions, at most MaxIter times, never re-running any step id in
	// Skip.
	Steps   int      `json:"steps,omitempty"`
	MaxIter int      `json:"max_iter,omitempty"`
	Skip    []string `json:"skip,omitempty"`
}

// NewBehaviorAction constructs a bare action with no reason or trigger.
func NewBehaviorAction(action BehaviorActionType) BehaviorAction {
	return BehaviorAction{Action: action}
}

// WithReason returns a copy of the action annotated with a human-readable
// reason.
func (a BehaviorAction) WithReason(reason string) BehaviorAction {
	a.Reason = reason
	return a
}

// WithTriggerAgent returns a copy configured to trigger the named agent.
func (a BehaviorAction) WithTriggerAgent(agentID string) BehaviorAction {
	a.Action = BehaviorTrigger
	a.TriggerAgentID = agentID
	return a
}

const behaviorFileName = "behavior.json"

func behaviorPath(memoryDir string) string {
	return filepath.Join(memoryDir, behaviorFileName)
}

// ReadBehaviorFile reads and parses memory/behavior.json under memoryDir.
// A missing file is not an error: it returns (nil, nil), meaning no
// behavior was requested this round.
func ReadBehaviorFile(memoryDir string) (*BehaviorAction, error) {
	data, err := os.ReadFile(behaviorPath(memoryDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: read behavior file: %w", err)
	}
	var action BehaviorAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("workflow: parse behavior file: %w", err)
	}
	return &action, nil
}

// WriteBehaviorFile writes action to memory/behavior.json under memoryDir,
// creating the directory if needed.
func WriteBehaviorFile(memoryDir string, action BehaviorAction) error {
	if err := os.MkdirAll(memoryDir, 0o755); err != nil {
		return fmt.Errorf("workflow: create memory dir: %w", err)
	}
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("workflow: marshal behavior: %w", err)
	}
	if err := os.WriteFile(behaviorPath(memoryDir), data, 0o644); err != nil {
		return fmt.Errorf("workflow: write behavior file: %w", err)
	}
	return nil
}

// DeleteBehaviorFile removes memory/behavior.json, if present, so a
// subsequent round that doesn't write a new one doesn't re-trigger the
// last action. Missing file is not an error.
func DeleteBehaviorFile(memoryDir string) error {
	err := os.Remove(behaviorPath(memoryDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workflow: delete behavior file: %w", err)
	}
	return nil
}

// consumeBehaviorFile reads then deletes the behavior file in one step, the
// read-then-delete pattern the executor uses between rounds so a
// behavior fires exactly once.
func consumeBehaviorFile(memoryDir string) (*BehaviorAction, error) {
	action, err := ReadBehaviorFile(memoryDir)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, nil
	}
	if err := DeleteBehaviorFile(memoryDir); err != nil {
		return nil, err
	}
	return action, nil
}
