package policy

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml"
)

// PolicyError carries structured context about a policy failure, per the
// error-handling design: callers get the matched rule/path that explains
// the cause rather than a bare string.
type PolicyError struct {
	Op      string
	Path    string
	Wrapped error
}

func (e *PolicyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("policy: %s %s: %v", e.Op, e.Path, e.Wrapped)
	}
	return fmt.Sprintf("policy: %s: %v", e.Op, e.Wrapped)
}

func (e *PolicyError) Unwrap() error { return e.Wrapped }

// policyFile mirrors the on-disk TOML shape from spec.md §6.
type policyFile struct {
	ApprovalMode string `toml:"approval_mode"`
	Rules        []Rule `toml:"rules"`
}

// Engine evaluates tool calls against a rule set and supports hot reload
// with rollback. Rules and approval mode are guarded by a reader/writer
// lock: evaluators hold the shared lock; reload holds the exclusive lock
// only around the atomic swap.
type Engine struct {
	mu           sync.RWMutex
	rules        []Rule
	approvalMode ApprovalMode
	state        EngineState

	logger *slog.Logger
	audit  *AuditLog
	alerts *AlertManager
}

// NewEngine constructs an Engine with no rules loaded (Uninitialized).
// Call Load or LoadFile before evaluating.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		approvalMode: ApprovalAsk,
		state:        StateUninitialized,
		logger:       logger,
		audit:        NewAuditLog(),
	}
}

// SetAlertManager wires an AlertManager; every non-allow decision is
// forwarded to it. Nil disables alerting.
func (e *Engine) SetAlertManager(am *AlertManager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = am
}

// Audit returns the engine's audit log.
func (e *Engine) Audit() *AuditLog { return e.audit }

// State returns the engine's current lifecycle state.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LoadFile parses and validates the TOML policy file at path, then installs
// it as the active rule set. This is the initial load, distinct from
// ReloadFile which preserves rollback-on-failure semantics.
func (e *Engine) LoadFile(path string) error {
	rules, mode, err := parsePolicyFile(path)
	if err != nil {
		return &PolicyError{Op: "load", Path: path, Wrapped: err}
	}
	if err := validateRules(rules); err != nil {
		return &PolicyError{Op: "load", Path: path, Wrapped: err}
	}

	e.mu.Lock()
	e.rules = rules
	e.approvalMode = mode
	e.state = StateLoaded
	e.mu.Unlock()
	return nil
}

func parsePolicyFile(path string) ([]Rule, ApprovalMode, error) {
	var pf policyFile
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := tree.Unmarshal(&pf); err != nil {
		return nil, "", err
	}

	mode := ApprovalAsk
	switch strings.ToLower(pf.ApprovalMode) {
	case "", string(ApprovalAsk):
		mode = ApprovalAsk
	case string(ApprovalYolo):
		mode = ApprovalYolo
	case string(ApprovalDeny):
		mode = ApprovalDeny
	default:
		return nil, "", fmt.Errorf("unrecognized approval_mode %q", pf.ApprovalMode)
	}
	return pf.Rules, mode, nil
}

// validateRules checks that every pattern compiles and that no two rules of
// the same priority with overlapping tool patterns declare conflicting
// actions for identical patterns (a cheap conflict check mirroring the
// original's "no conflicts; every pattern compiles" validation).
func validateRules(rules []Rule) error {
	seen := make(map[string]Action) // priority|tool_pattern|arg_pattern -> action
	for _, r := range rules {
		if _, err := compileGlob(r.ToolPattern); err != nil {
			return fmt.Errorf("rule %q: invalid tool_pattern: %w", r.Name, err)
		}
		if r.ArgPattern != "" {
			if _, err := compileGlob(r.ArgPattern); err != nil {
				return fmt.Errorf("rule %q: invalid arg_pattern: %w", r.Name, err)
			}
		}
		switch r.Action {
		case ActionAllow, ActionDeny, ActionAskUser, ActionDryRunFirst:
		default:
			return fmt.Errorf("rule %q: invalid action %q", r.Name, r.Action)
		}

		key := string(r.Priority) + "|" + r.ToolPattern + "|" + r.ArgPattern
		if prevAction, ok := seen[key]; ok && prevAction != r.Action {
			return fmt.Errorf("rule %q conflicts with an earlier rule matching the same pattern with a different action", r.Name)
		}
		seen[key] = r.Action
	}
	return nil
}

// Evaluate decides the action for a tool call per spec.md §4.3: rules are
// tested in priority order (system > org > project > user); within a
// priority, rules are tested in file order. The first match wins.
func (e *Engine) Evaluate(toolName, args, agentID string) Decision {
	e.mu.RLock()
	rules := e.rules
	mode := e.approvalMode
	e.mu.RUnlock()

	ordered := orderByPriority(rules)
	for _, r := range ordered {
		if !globMatch(r.ToolPattern, toolName) {
			continue
		}
		if r.ArgPattern != "" && !globMatch(r.ArgPattern, args) {
			continue
		}
		d := Decision{Action: r.Action, MatchedRule: r.Name, Reason: r.Reason}
		e.record(toolName, args, agentID, d)
		return d
	}

	d := Decision{Action: defaultAction(mode)}
	e.record(toolName, args, agentID, d)
	return d
}

func defaultAction(mode ApprovalMode) Action {
	switch mode {
	case ApprovalYolo:
		return ActionAllow
	case ApprovalDeny:
		return ActionDeny
	default:
		return ActionAskUser
	}
}

func (e *Engine) record(toolName, args, agentID string, d Decision) {
	e.audit.Record(AuditEntry{
		ToolName:    toolName,
		Args:        args,
		Action:      d.Action,
		MatchedRule: d.MatchedRule,
		AgentID:     agentID,
	})
	if e.alerts != nil {
		e.alerts.Notify(AlertPayload{
			Severity:    severityFor(d.Action),
			ToolName:    toolName,
			Arguments:   args,
			Action:      d.Action,
			MatchedRule: d.MatchedRule,
			Reason:      d.Reason,
			User:        agentID,
		})
	}
}

// orderByPriority returns rules sorted by spec.md priority order
// (system > org > project > user), preserving file order within a tier.
func orderByPriority(rules []Rule) []Rule {
	rank := make(map[Priority]int, len(priorityOrder))
	for i, p := range priorityOrder {
		rank[p] = i
	}
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank[ordered[i].Priority] < rank[ordered[j].Priority]
	})
	return ordered
}
