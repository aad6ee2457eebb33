package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicyFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	return path
}

const samplePolicy = `
approval_mode = "ask"

[[rules]]
name = "deny-rm-rf"
priority = "system"
tool_pattern = "shell.exec"
arg_pattern = "*rm -rf*"
action = "deny"
reason = "destructive shell command"

[[rules]]
name = "allow-reads"
priority = "project"
tool_pattern = "fs.read"
action = "allow"
`

func TestEngineLoadFileAndEvaluate(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, samplePolicy)

	e := NewEngine(nil)
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if e.State() != StateLoaded {
		t.Fatalf("expected StateLoaded, got %s", e.State())
	}

	d := e.Evaluate("shell.exec", "rm -rf /", "agent-1")
	if d.Action != ActionDeny || d.MatchedRule != "deny-rm-rf" {
		t.Fatalf("expected deny-rm-rf match, got %+v", d)
	}

	d = e.Evaluate("fs.read", "README.md", "agent-1")
	if d.Action != ActionAllow {
		t.Fatalf("expected allow, got %+v", d)
	}

	d = e.Evaluate("network.fetch", "http://example.com", "agent-1")
	if d.Action != ActionAskUser {
		t.Fatalf("expected default ask_user when no rule matches, got %+v", d)
	}
}

func TestEngineEvaluateRecordsAudit(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, samplePolicy)

	e := NewEngine(nil)
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	e.Evaluate("shell.exec", "rm -rf /", "agent-1")

	entries := e.Audit().All()
	if len(entries) != 1 || entries[0].MatchedRule != "deny-rm-rf" {
		t.Fatalf("expected one audit entry recording the match, got %+v", entries)
	}
}

func TestEnginePriorityOrderSystemBeatsProject(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, `
approval_mode = "yolo"

[[rules]]
name = "project-allow"
priority = "project"
tool_pattern = "shell.exec"
action = "allow"

[[rules]]
name = "system-deny"
priority = "system"
tool_pattern = "shell.exec"
action = "deny"
`)
	e := NewEngine(nil)
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	d := e.Evaluate("shell.exec", "anything", "agent-1")
	if d.MatchedRule != "system-deny" {
		t.Fatalf("expected system priority rule to win regardless of file order, got %+v", d)
	}
}

func TestEngineRejectsConflictingRules(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, `
approval_mode = "ask"

[[rules]]
name = "a"
priority = "system"
tool_pattern = "shell.exec"
action = "allow"

[[rules]]
name = "b"
priority = "system"
tool_pattern = "shell.exec"
action = "deny"
`)
	e := NewEngine(nil)
	if err := e.LoadFile(path); err == nil {
		t.Fatal("expected conflicting rules to fail validation")
	}
}

func TestDefaultActionByApprovalMode(t *testing.T) {
	if defaultAction(ApprovalYolo) != ActionAllow {
		t.Error("yolo should default to allow")
	}
	if defaultAction(ApprovalDeny) != ActionDeny {
		t.Error("deny should default to deny")
	}
	if defaultAction(ApprovalAsk) != ActionAskUser {
		t.Error("ask should default to ask_user")
	}
}
