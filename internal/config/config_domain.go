package config

import "time"

// VaultConfig configures the encrypted credential vault (C1).
type VaultConfig struct {
	// Path is the on-disk location of the encrypted vault file.
	Path string `yaml:"path"`

	// PasswordEnv names the environment variable holding the vault
	// unlock password. If empty, RADIUM_VAULT_PASSWORD is used.
	PasswordEnv string `yaml:"password_env"`
}

// PolicyConfig configures the tool-call policy engine (C3).
type PolicyConfig struct {
	// File is the TOML policy file path (rules + approval_mode). See
	// RADIUM_POLICY_FILE for the environment override.
	File string `yaml:"file"`

	// Watch enables hot-reload of File via fsnotify.
	Watch bool `yaml:"watch"`

	// Webhooks are alert destinations for non-allow policy decisions.
	Webhooks []PolicyWebhookConfig `yaml:"webhooks"`
}

// PolicyWebhookConfig mirrors policy.WebhookConfig as parsed from YAML.
type PolicyWebhookConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token,omitempty"`
	MinSeverity string `yaml:"min_severity"`
}

// WorkflowConfig configures the DAG workflow executor (C9). It holds the
// serializable subset of workflow.Config; wiring code translates this into
// a workflow.Config with the logger/metrics/trigger func attached.
type WorkflowConfig struct {
	// Parallelism caps concurrent steps per round. Default 4.
	Parallelism int `yaml:"parallelism"`

	// MemoryDir is where module behaviors (checkpoint, trigger, loop) are
	// read from between rounds.
	MemoryDir string `yaml:"memory_dir"`
}

// HooksConfig configures hook discovery and the tool-call hook pipeline (C10).
type HooksConfig struct {
	// Dirs are directories searched for HOOK.md definitions.
	Dirs []string `yaml:"dirs"`

	// ApprovalTimeout bounds how long a tool call waits on an approval hook.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

// PrivacyConfig configures PII redaction of logs and telemetry (C11).
type PrivacyConfig struct {
	// Enabled turns on redaction of the built-in PII pattern library.
	Enabled bool `yaml:"enabled"`

	// Style selects the redaction style: "mask", "hash", or "remove".
	Style string `yaml:"style"`

	// Allowlist names PII pattern identifiers to skip redacting.
	Allowlist []string `yaml:"allowlist"`
}

// AnalyticsConfig configures the usage/cost analytics aggregator (C12).
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled"`

	// FlushInterval is how often aggregated counters are persisted.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ExtensionsConfig configures the extension installer/manager (C14).
type ExtensionsConfig struct {
	Enabled bool `yaml:"enabled"`

	// BaseDir is the root directory extensions are installed under,
	// typically "<workspace>/.radium/extensions".
	BaseDir string `yaml:"base_dir"`
}

// SessionStoreConfig configures persistent session/checkpoint storage (C8).
type SessionStoreConfig struct {
	// Root is the directory sessions are persisted under.
	Root string `yaml:"root"`
}

func applyVaultDefaults(cfg *VaultConfig) {
	if cfg.Path == "" {
		cfg.Path = ".radium/vault.enc"
	}
	if cfg.PasswordEnv == "" {
		cfg.PasswordEnv = "RADIUM_VAULT_PASSWORD"
	}
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.File == "" {
		cfg.File = ".radium/policy.toml"
	}
}

func applyWorkflowDefaults(cfg *WorkflowConfig) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.MemoryDir == "" {
		cfg.MemoryDir = ".radium/workflow"
	}
}

func applyHooksDefaults(cfg *HooksConfig) {
	if len(cfg.Dirs) == 0 {
		cfg.Dirs = []string{".radium/hooks"}
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = 5 * time.Minute
	}
}

func applyPrivacyDefaults(cfg *PrivacyConfig) {
	if cfg.Style == "" {
		cfg.Style = "mask"
	}
}

func applyAnalyticsDefaults(cfg *AnalyticsConfig) {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
}

func applyExtensionsDefaults(cfg *ExtensionsConfig) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = ".radium/extensions"
	}
}

func applySessionStoreDefaults(cfg *SessionStoreConfig) {
	if cfg.Root == "" {
		cfg.Root = ".radium/sessions"
	}
}

func validateWorkflowConfig(cfg *Config) []string {
	var issues []string
	if cfg.Workflow.Parallelism < 0 {
		issues = append(issues, "workflow.parallelism must not be negative")
	}
	return issues
}
