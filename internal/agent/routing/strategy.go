package routing

import "strings"

// Strategy names a routing decision policy.
type Strategy string

const (
	StrategyComplexityBased Strategy = "complexity_based"
	StrategyCostOptimized   Strategy = "cost_optimized"
	StrategyLatencyOptimized Strategy = "latency_optimized"
	StrategyQualityOptimized Strategy = "quality_optimized"
)

// ParseStrategy parses a strategy name, returning ok=false for anything not
// in the four recognized strategies.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyComplexityBased:
		return StrategyComplexityBased, true
	case StrategyCostOptimized:
		return StrategyCostOptimized, true
	case StrategyLatencyOptimized:
		return StrategyLatencyOptimized, true
	case StrategyQualityOptimized:
		return StrategyQualityOptimized, true
	default:
		return "", false
	}
}

// ModelSpec identifies a model as "engine:model-id", e.g. "claude:sonnet-4.5".
type ModelSpec struct {
	Engine  string
	ModelID string
}

// String renders the spec back to "engine:model-id" form.
func (m ModelSpec) String() string {
	return m.Engine + ":" + m.ModelID
}

var validEngines = map[string]bool{
	"claude": true, "openai": true, "gemini": true, "mock": true,
}

// ParseModelSpec parses "engine:model-id", validating the engine against
// the recognized set.
func ParseModelSpec(spec string) (ModelSpec, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ModelSpec{}, errInvalidRequest("invalid model spec %q: expected \"engine:model-id\"", spec)
	}
	engine := strings.ToLower(parts[0])
	if !validEngines[engine] {
		return ModelSpec{}, errInvalidRequest("invalid engine %q in model spec %q", engine, spec)
	}
	return ModelSpec{Engine: engine, ModelID: parts[1]}, nil
}

// FallbackChain is an ordered list of models to try in sequence on
// provider-side failure. Tool-reported failures never advance the chain;
// only network/5xx/rate-limit errors from the provider do.
type FallbackChain struct {
	Name   string
	Models []ModelSpec
}

// Len returns the number of models in the chain.
func (c FallbackChain) Len() int { return len(c.Models) }

// ComplexityRule selects a strategy and candidate model set for requests
// whose complexity score falls within [ComplexityMin, ComplexityMax].
type ComplexityRule struct {
	ComplexityMin float64
	ComplexityMax float64 // 0 means unbounded (100)
	Strategy      Strategy
	Models        []ModelSpec
}

func (r ComplexityRule) matches(score float64) bool {
	max := r.ComplexityMax
	if max <= 0 {
		max = 100
	}
	return score >= r.ComplexityMin && score <= max
}

// RouteDecision records the outcome of routing one request: which model was
// chosen, by which strategy, which A/B group it landed in, and the
// complexity score that informed the choice.
type RouteDecision struct {
	Chosen          ModelSpec
	Strategy        Strategy
	ABGroup         ABGroup
	ComplexityScore float64
}
