// Package sessionstore implements the on-disk session journal: one
// atomically-written metadata file plus three append-only JSONL logs and an
// artifacts directory per session, with an in-memory cache in front of disk.
package sessionstore

import (
	"encoding/json"
	"time"
)

// State is the lifecycle state of a session.
type State string

const (
	StateActive    State = "Active"
	StatePaused    State = "Paused"
	StateCompleted State = "Completed"
	StateError     State = "Error"
)

// Metadata is the contents of session.json. It never holds the message,
// tool-call, or approval bodies — those live in their own JSONL logs and are
// loaded on demand by Replay.
type Metadata struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	State      State     `json:"state"`
}

// MessageRecord is one line of messages.jsonl.
type MessageRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// ToolCallRecord is one line of tools.jsonl.
type ToolCallRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	ToolName  string          `json:"tool_name"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ApprovalRecord is one line of approvals.jsonl.
type ApprovalRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Approved  bool      `json:"approved"`
	Approver  string    `json:"approver,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Session is a fully replayed session: metadata plus every record loaded
// from its three JSONL logs and the names of its artifacts.
type Session struct {
	Metadata  Metadata
	Messages  []MessageRecord
	ToolCalls []ToolCallRecord
	Approvals []ApprovalRecord
	Artifacts []string
}

// ListFilter narrows ListSessions results.
type ListFilter struct {
	State   State
	AgentID string
}

// ListPage is one page of a sorted, filtered session listing.
type ListPage struct {
	Sessions []Metadata
	Total    int
}
