// Package config loads and validates the Radium runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/radium-run/radium/internal/mcp"
	"github.com/radium-run/radium/internal/memory"
	"github.com/radium-run/radium/internal/skills"
)

// Config is the root configuration structure for a Radium runtime instance.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
	Auth         AuthConfig          `yaml:"auth"`
	Session      SessionConfig       `yaml:"session"`
	Workspace    WorkspaceConfig     `yaml:"workspace"`
	Identity     IdentityConfig      `yaml:"identity"`
	User         UserConfig          `yaml:"user"`
	Skills       skills.SkillsConfig `yaml:"skills"`
	VectorMemory memory.Config       `yaml:"vector_memory"`
	RAG          RAGConfig           `yaml:"rag"`
	MCP          mcp.Config          `yaml:"mcp"`
	LLM          LLMConfig           `yaml:"llm"`
	Tools        ToolsConfig         `yaml:"tools"`
	Logging      LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`

	Vault        VaultConfig        `yaml:"vault"`
	Policy       PolicyConfig       `yaml:"policy"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Hooks        HooksConfig        `yaml:"hooks"`
	Privacy      PrivacyConfig      `yaml:"privacy"`
	Analytics    AnalyticsConfig    `yaml:"analytics"`
	Extensions   ExtensionsConfig   `yaml:"extensions"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	GRPCPort    int    `yaml:"grpc_port"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Load reads path (YAML or JSON5, resolving $include directives), expands
// environment variables, applies defaults and env overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyAuthDefaults(&cfg.Auth)
	applySessionDefaults(&cfg.Session)
	applyWorkspaceDefaults(&cfg.Workspace)
	applyToolsDefaults(cfg)
	applyLLMDefaults(&cfg.LLM)
	applyLoggingDefaults(&cfg.Logging)
	applyRAGDefaults(&cfg.RAG)
	applyVaultDefaults(&cfg.Vault)
	applyPolicyDefaults(&cfg.Policy)
	applyWorkflowDefaults(&cfg.Workflow)
	applyHooksDefaults(&cfg.Hooks)
	applyPrivacyDefaults(&cfg.Privacy)
	applyAnalyticsDefaults(&cfg.Analytics)
	applyExtensionsDefaults(&cfg.Extensions)
	applySessionStoreDefaults(&cfg.SessionStore)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.GRPCPort == 0 {
		cfg.GRPCPort = 50051
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("RADIUM_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("RADIUM_GRPC_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.GRPCPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("RADIUM_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("RADIUM_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}

	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}

	if value := strings.TrimSpace(os.Getenv("JWT_SECRET")); value != "" {
		cfg.Auth.JWTSecret = value
	}
	if value := strings.TrimSpace(os.Getenv("RADIUM_JWT_SECRET")); value != "" {
		cfg.Auth.JWTSecret = value
	}
	if value := strings.TrimSpace(os.Getenv("RADIUM_TOKEN_EXPIRY")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.Auth.TokenExpiry = parsed
		}
	}
}

type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	issues = append(issues, validateSessionConfig(cfg)...)
	issues = append(issues, validateWorkspaceConfig(cfg)...)
	issues = append(issues, validateLLMConfig(cfg)...)
	issues = append(issues, validateAuthConfig(cfg)...)
	issues = append(issues, validateToolsConfig(cfg)...)
	issues = append(issues, validateMemorySearchConfig(cfg)...)
	issues = append(issues, validateWorkflowConfig(cfg)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}

func validateAuthConfig(cfg *Config) []string {
	var issues []string
	seenKeys := map[string]struct{}{}
	for i, entry := range cfg.Auth.APIKeys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d].key must be set", i))
			continue
		}
		if _, ok := seenKeys[key]; ok {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d].key must be unique", i))
		} else {
			seenKeys[key] = struct{}{}
		}
	}
	if jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret); jwtSecret != "" && len(jwtSecret) < 32 {
		issues = append(issues, "auth.jwt_secret must be at least 32 characters for security")
	}
	return issues
}

func validateLLMConfig(cfg *Config) []string {
	var issues []string
	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}
	return issues
}
