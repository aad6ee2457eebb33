package routing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/radium-run/radium/internal/agent"
)

type stubProvider struct {
	name          string
	supportsTools bool
	calls         int
	lastModel     string
}

type dummyTool struct{}

func (dummyTool) Name() string            { return "dummy" }
func (dummyTool) Description() string     { return "dummy tool" }
func (dummyTool) Schema() json.RawMessage { return nil }
func (dummyTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{}, nil
}

func (p *stubProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.calls++
	p.lastModel = req.Model
	ch := make(chan *agent.CompletionChunk, 1)
	ch <- &agent.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func (p *stubProvider) Name() string {
	return p.name
}

func (p *stubProvider) Models() []agent.Model {
	return nil
}

func (p *stubProvider) SupportsTools() bool {
	return p.supportsTools
}

func TestRouterRuleMatch(t *testing.T) {
	fast := &stubProvider{name: "fast"}
	code := &stubProvider{name: "code"}
	providers := map[string]agent.LLMProvider{
		"fast": fast,
		"code": code,
	}

	router := NewRouter(Config{
		DefaultProvider: "fast",
		Rules: []Rule{{
			Name:  "code",
			Match: Match{Tags: []string{"code"}},
			Target: Target{
				Provider: "code",
				Model:    "gpt-4o",
			},
		}},
		Classifier: &HeuristicClassifier{},
	}, providers)

	req := &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "Write a Go function: func main() {}"}},
	}
	_, err := router.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if code.calls != 1 {
		t.Fatalf("expected code provider to be called")
	}
	if code.lastModel != "gpt-4o" {
		t.Fatalf("expected model override, got %q", code.lastModel)
	}
}

func TestRouterPreferLocal(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	defaultP := &stubProvider{name: "anthropic"}
	providers := map[string]agent.LLMProvider{
		"ollama":    local,
		"anthropic": defaultP,
	}

	router := NewRouter(Config{
		DefaultProvider: "anthropic",
		PreferLocal:     true,
		LocalProviders:  []string{"ollama"},
	}, providers)

	req := &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hello"}},
	}
	_, err := router.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if local.calls != 1 {
		t.Fatalf("expected local provider to be called")
	}
}

func TestRouterDecideMatchesComplexityRule(t *testing.T) {
	router := NewRouter(Config{
		DefaultProvider: "fast",
		ComplexityRules: []ComplexityRule{
			{ComplexityMin: 0, ComplexityMax: 30, Strategy: StrategyCostOptimized,
				Models: []ModelSpec{{Engine: "gemini", ModelID: "flash"}}},
		},
	}, map[string]agent.LLMProvider{"fast": &stubProvider{name: "fast"}})

	req := &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	}
	decision := router.Decide(req)
	if decision.Strategy != StrategyCostOptimized {
		t.Fatalf("Strategy = %v, want cost_optimized", decision.Strategy)
	}
	if decision.Chosen.String() != "gemini:flash" {
		t.Fatalf("Chosen = %v, want gemini:flash", decision.Chosen)
	}
	if decision.ABGroup != ABGroupControl {
		t.Fatalf("expected control group with A/B disabled, got %v", decision.ABGroup)
	}
}

func TestRouterDecideFallsBackToDefaultStrategyWhenNoRuleMatches(t *testing.T) {
	router := NewRouter(Config{
		DefaultProvider: "fast",
		DefaultStrategy: StrategyLatencyOptimized,
	}, map[string]agent.LLMProvider{"fast": &stubProvider{name: "fast"}})

	decision := router.Decide(&agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if decision.Strategy != StrategyLatencyOptimized {
		t.Fatalf("Strategy = %v, want latency_optimized", decision.Strategy)
	}
	if (decision.Chosen != ModelSpec{}) {
		t.Fatalf("expected zero-value Chosen when no rule matches, got %+v", decision.Chosen)
	}
}

func TestRouterDecideTestGroupInvertsToSecondChoice(t *testing.T) {
	router := NewRouter(Config{
		DefaultProvider: "fast",
		ComplexityRules: []ComplexityRule{
			{ComplexityMin: 0, ComplexityMax: 100, Strategy: StrategyComplexityBased,
				Models: []ModelSpec{
					{Engine: "claude", ModelID: "sonnet-4.5"},
					{Engine: "openai", ModelID: "gpt-4"},
				}},
		},
		ABTest: ABTestConfig{Enabled: true, SampleRate: 1.0},
	}, map[string]agent.LLMProvider{"fast": &stubProvider{name: "fast"}})

	decision := router.Decide(&agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if decision.ABGroup != ABGroupTest {
		t.Fatalf("expected test group with sample_rate=1.0, got %v", decision.ABGroup)
	}
	if decision.Chosen.String() != "openai:gpt-4" {
		t.Fatalf("expected test group to invert to the second model, got %v", decision.Chosen)
	}
}

func TestRouterToolFallback(t *testing.T) {
	noTools := &stubProvider{name: "ollama", supportsTools: false}
	withTools := &stubProvider{name: "openai", supportsTools: true}
	providers := map[string]agent.LLMProvider{
		"ollama": noTools,
		"openai": withTools,
	}

	router := NewRouter(Config{
		DefaultProvider: "ollama",
	}, providers)

	req := &agent.CompletionRequest{
		Messages: []agent.CompletionMessage{{Role: "user", Content: "use tool"}},
		Tools:    []agent.Tool{dummyTool{}},
	}
	_, err := router.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if withTools.calls != 1 {
		t.Fatalf("expected tool-capable provider to be called")
	}
}
