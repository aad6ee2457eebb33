package routing

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// FileConfig is the parsed shape of the TOML routing configuration file
// described in spec.md §6:
//
//	default_strategy = "complexity_based"
//	threshold = 70.0
//	[[chains]]
//	name = "default"
//	models = ["claude:sonnet-4.5", "openai:gpt-4", "gemini:pro"]
//	[[rules]]
//	complexity_min = 80.0
//	strategy = "quality_optimized"
//	models = ["claude:sonnet-4.5"]
type FileConfig struct {
	DefaultStrategy string              `toml:"default_strategy"`
	Threshold       float64             `toml:"threshold"`
	Chains          []FileChainConfig   `toml:"chains"`
	Rules           []FileRuleConfig    `toml:"rules"`
}

// FileChainConfig is one [[chains]] entry.
type FileChainConfig struct {
	Name   string   `toml:"name"`
	Models []string `toml:"models"`
}

// FileRuleConfig is one [[rules]] entry.
type FileRuleConfig struct {
	ComplexityMin float64  `toml:"complexity_min"`
	ComplexityMax float64  `toml:"complexity_max"`
	Strategy      string   `toml:"strategy"`
	Models        []string `toml:"models"`
}

// LoadConfigFile reads and parses a routing TOML file from disk.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routing: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses routing TOML from an in-memory byte slice and
// validates it: every strategy name must be recognized, every model spec
// must be "engine:model-id" with a known engine, chains must be non-empty,
// and a rule's complexity_min must not exceed its complexity_max.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("routing: parse config: %w", err)
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = string(StrategyComplexityBased)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *FileConfig) error {
	if _, ok := ParseStrategy(cfg.DefaultStrategy); !ok {
		return fmt.Errorf("routing: invalid default_strategy %q", cfg.DefaultStrategy)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return fmt.Errorf("routing: invalid threshold %v: must be 0-100", cfg.Threshold)
	}
	for _, chain := range cfg.Chains {
		if len(chain.Models) == 0 {
			return fmt.Errorf("routing: fallback chain %q must have at least one model", chain.Name)
		}
		for _, spec := range chain.Models {
			if _, err := ParseModelSpec(spec); err != nil {
				return err
			}
		}
	}
	for i, rule := range cfg.Rules {
		if rule.ComplexityMax > 0 && rule.ComplexityMin > rule.ComplexityMax {
			return fmt.Errorf("routing: rule %d: complexity_min (%v) must be <= complexity_max (%v)", i, rule.ComplexityMin, rule.ComplexityMax)
		}
		if rule.Strategy != "" {
			if _, ok := ParseStrategy(rule.Strategy); !ok {
				return fmt.Errorf("routing: rule %d: invalid strategy %q", i, rule.Strategy)
			}
		}
		if len(rule.Models) == 0 {
			return fmt.Errorf("routing: rule %d: must specify at least one model", i)
		}
		for _, spec := range rule.Models {
			if _, err := ParseModelSpec(spec); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildFallbackChains converts the file config's chains into FallbackChain
// values keyed by name.
func BuildFallbackChains(cfg *FileConfig) (map[string]FallbackChain, error) {
	chains := make(map[string]FallbackChain, len(cfg.Chains))
	for _, c := range cfg.Chains {
		models := make([]ModelSpec, 0, len(c.Models))
		for _, spec := range c.Models {
			parsed, err := ParseModelSpec(spec)
			if err != nil {
				return nil, err
			}
			models = append(models, parsed)
		}
		chains[c.Name] = FallbackChain{Name: c.Name, Models: models}
	}
	return chains, nil
}

// BuildComplexityRules converts the file config's rules into ComplexityRule
// values in file order (first match wins, matching the spec's glob/policy
// evaluation convention).
func BuildComplexityRules(cfg *FileConfig) ([]ComplexityRule, error) {
	rules := make([]ComplexityRule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		models := make([]ModelSpec, 0, len(rc.Models))
		for _, spec := range rc.Models {
			parsed, err := ParseModelSpec(spec)
			if err != nil {
				return nil, err
			}
			models = append(models, parsed)
		}
		strategy, _ := ParseStrategy(rc.Strategy)
		rules = append(rules, ComplexityRule{
			ComplexityMin: rc.ComplexityMin,
			ComplexityMax: rc.ComplexityMax,
			Strategy:      strategy,
			Models:        models,
		})
	}
	return rules, nil
}
