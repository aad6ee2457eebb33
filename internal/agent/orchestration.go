package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/radium-run/radium/pkg/models"
)

// FinishReason explains why an orchestration run stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishMaxIterations FinishReason = "max_iterations"
	FinishToolError     FinishReason = "tool_error"
	FinishCancelled     FinishReason = "cancelled"
	FinishError         FinishReason = "error"
)

// finishReasonPriority orders candidate finish reasons from highest to
// lowest precedence when more than one condition holds at once for the same
// round: a cancellation always wins over every other explanation, then an
// unrecoverable error, then hitting the round budget, then a tool failure,
// and finally a clean stop.
var finishReasonPriority = map[FinishReason]int{
	FinishCancelled:     0,
	FinishError:         1,
	FinishMaxIterations: 2,
	FinishToolError:     3,
	FinishStop:          4,
}

// resolveFinishReason picks the highest-precedence reason from candidates.
// An empty candidate list resolves to FinishStop.
func resolveFinishReason(candidates ...FinishReason) FinishReason {
	if len(candidates) == 0 {
		return FinishStop
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if finishReasonPriority[c] < finishReasonPriority[best] {
			best = c
		}
	}
	return best
}

// OrchestrationResult is the terminal outcome of a continuation-loop run.
type OrchestrationResult struct {
	Response     string
	ToolCalls    []models.ToolCall
	FinishReason FinishReason
}

// ContinuationBehavior selects how an orchestration round decides whether to
// keep looping after a model response.
type ContinuationBehavior struct {
	Kind      ContinuationKind
	MaxRounds int                 // used by KindAutoContinue
	Condition ContinuationCondition // used by KindAutoContinueUntil
}

// ContinuationKind discriminates ContinuationBehavior's active mode.
type ContinuationKind int

const (
	// ManualContinuation never auto-continues; the caller decides each round.
	ManualContinuation ContinuationKind = iota
	// AutoContinueKind continues while tool calls are present, up to MaxRounds.
	AutoContinueKind
	// AutoContinueUntilKind continues until Condition says to stop.
	AutoContinueUntilKind
)

// ConditionKind discriminates ContinuationCondition's active check.
type ConditionKind int

const (
	ConditionNoToolCalls ConditionKind = iota
	ConditionMaxTokens
	ConditionTimeout
)

// ContinuationCondition is the stopping rule for AutoContinueUntilKind.
type ContinuationCondition struct {
	Kind      ConditionKind
	MaxTokens int           // used by ConditionMaxTokens
	Timeout   time.Duration // used by ConditionTimeout
}

// ManualBehavior constructs a Manual continuation behavior.
func ManualBehavior() ContinuationBehavior {
	return ContinuationBehavior{Kind: ManualContinuation}
}

// AutoContinueBehavior constructs an AutoContinue behavior capped at maxRounds.
func AutoContinueBehavior(maxRounds int) ContinuationBehavior {
	return ContinuationBehavior{Kind: AutoContinueKind, MaxRounds: maxRounds}
}

// AutoContinueUntilNoToolCalls constructs an AutoContinueUntil behavior that
// stops once a response carries no tool calls.
func AutoContinueUntilNoToolCalls() ContinuationBehavior {
	return ContinuationBehavior{Kind: AutoContinueUntilKind, Condition: ContinuationCondition{Kind: ConditionNoToolCalls}}
}

// AutoContinueUntilMaxTokens constructs an AutoContinueUntil behavior that
// stops once accumulated tokens reach limit.
func AutoContinueUntilMaxTokens(limit int) ContinuationBehavior {
	return ContinuationBehavior{Kind: AutoContinueUntilKind, Condition: ContinuationCondition{Kind: ConditionMaxTokens, MaxTokens: limit}}
}

// AutoContinueUntilTimeout constructs an AutoContinueUntil behavior that
// stops once elapsed wall time reaches timeout.
func AutoContinueUntilTimeout(timeout time.Duration) ContinuationBehavior {
	return ContinuationBehavior{Kind: AutoContinueUntilKind, Condition: ContinuationCondition{Kind: ConditionTimeout, Timeout: timeout}}
}

// ContinuationInput is the state check_continuation-style behaviors need to
// decide whether another round should run.
type ContinuationInput struct {
	HasToolCalls bool
	TotalTokens  int
	Round        int
	MaxRounds    int
	Elapsed      time.Duration
}

// ShouldContinue evaluates behavior against in, returning whether the loop
// should run another round.
func ShouldContinue(behavior ContinuationBehavior, in ContinuationInput) bool {
	switch behavior.Kind {
	case ManualContinuation:
		return false

	case AutoContinueKind:
		effectiveMax := behavior.MaxRounds
		if in.MaxRounds < effectiveMax {
			effectiveMax = in.MaxRounds
		}
		return in.HasToolCalls && in.Round < effectiveMax

	case AutoContinueUntilKind:
		switch behavior.Condition.Kind {
		case ConditionNoToolCalls:
			return in.HasToolCalls && in.Round < in.MaxRounds
		case ConditionMaxTokens:
			if in.TotalTokens >= behavior.Condition.MaxTokens {
				return false
			}
			return in.HasToolCalls && in.Round < in.MaxRounds
		case ConditionTimeout:
			if in.Elapsed >= behavior.Condition.Timeout {
				return false
			}
			return in.HasToolCalls && in.Round < in.MaxRounds
		}
	}
	return false
}

// CircularToolCallError reports that a tool has been called repeatedly with
// identical arguments, suggesting the model is stuck in a loop.
type CircularToolCallError struct {
	ToolName string
	Count    int
}

func (e *CircularToolCallError) Error() string {
	return fmt.Sprintf("circular tool call detected: tool %q called %d times with identical arguments", e.ToolName, e.Count)
}

// circularCallThreshold is the number of identical repeated calls that
// triggers an abort: the call that would be the Nth occurrence is refused
// rather than executed, so at most circularCallThreshold-1 identical calls
// ever actually run in a single execute call.
const circularCallThreshold = 3

// CallHistoryTracker detects a model repeatedly issuing the same tool call
// with identical arguments, a sign of a stuck continuation loop.
type CallHistoryTracker struct {
	calls map[string]int
}

// NewCallHistoryTracker constructs an empty tracker.
func NewCallHistoryTracker() *CallHistoryTracker {
	return &CallHistoryTracker{calls: make(map[string]int)}
}

func callKey(name string, args json.RawMessage) string {
	return name + "\x00" + stableHashArgs(args)
}

// stableHashArgs produces a canonical string form of a tool call's
// arguments: parsing and re-marshaling through a Go map/slice tree makes
// object key order irrelevant, so two calls that differ only in key order
// are recognized as identical (unlike a raw byte comparison).
func stableHashArgs(args json.RawMessage) string {
	if len(args) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return string(args)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return string(args)
	}
	return string(canon)
}

// RecordCall records that call occurred, for future CheckCircular calls.
func (t *CallHistoryTracker) RecordCall(call models.ToolCall) {
	t.calls[callKey(call.Name, call.Input)]++
}

// CheckCircular reports whether issuing call again would make it the
// circularCallThreshold'th identical occurrence (i.e. it has already been
// recorded circularCallThreshold-1 times).
func (t *CallHistoryTracker) CheckCircular(call models.ToolCall) bool {
	return t.calls[callKey(call.Name, call.Input)] >= circularCallThreshold-1
}

// CheckAll returns the first circular-call error found among calls, checking
// each against history recorded so far (before recording calls itself). The
// reported Count is the occurrence number that was refused.
func (t *CallHistoryTracker) CheckAll(calls []models.ToolCall) error {
	for _, c := range calls {
		if t.CheckCircular(c) {
			return &CircularToolCallError{ToolName: c.Name, Count: t.calls[callKey(c.Name, c.Input)] + 1}
		}
	}
	return nil
}

// RecordAll records every call in calls.
func (t *CallHistoryTracker) RecordAll(calls []models.ToolCall) {
	for _, c := range calls {
		t.RecordCall(c)
	}
}

// sortedToolNames is a small helper used by tests to get deterministic
// output when asserting on tracker internals.
func (t *CallHistoryTracker) sortedKeys() []string {
	keys := make([]string, 0, len(t.calls))
	for k := range t.calls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
