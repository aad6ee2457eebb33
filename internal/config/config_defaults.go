package config

import (
	"fmt"
	"strings"
	"time"
)

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = 24 * time.Hour
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Memory.Directory == "" {
		cfg.Memory.Directory = ".radium/memory"
	}
	if cfg.Memory.MaxLines == 0 {
		cfg.Memory.MaxLines = 500
	}
	if cfg.MemoryFlush.Threshold == 0 {
		cfg.MemoryFlush.Threshold = 50
	}
	if cfg.Scoping.DMScope == "" {
		cfg.Scoping.DMScope = "main"
	}
}

func applyWorkspaceDefaults(cfg *WorkspaceConfig) {
	if cfg.AgentsFile == "" {
		cfg.AgentsFile = "AGENTS.md"
	}
	if cfg.SoulFile == "" {
		cfg.SoulFile = "SOUL.md"
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 50000
	}
}

func applyToolsDefaults(cfg *Config) {
	t := &cfg.Tools
	if t.Execution.MaxIterations == 0 {
		t.Execution.MaxIterations = 50
	}
	if t.Execution.Parallelism == 0 {
		t.Execution.Parallelism = 4
	}
	if t.Execution.Timeout == 0 {
		t.Execution.Timeout = 2 * time.Minute
	}
	if t.Execution.Approval.DefaultDecision == "" {
		t.Execution.Approval.DefaultDecision = "pending"
	}
	if t.Jobs.Retention == 0 {
		t.Jobs.Retention = 24 * time.Hour
	}
	if t.Jobs.PruneInterval == 0 {
		t.Jobs.PruneInterval = time.Hour
	}
	if t.Sandbox.Scope == "" {
		t.Sandbox.Scope = "agent"
	}
	if t.Sandbox.Mode == "" {
		t.Sandbox.Mode = "off"
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.RefreshInterval == "" {
		cfg.Bedrock.RefreshInterval = "1h"
	}
	if cfg.Bedrock.DefaultContextWindow == 0 {
		cfg.Bedrock.DefaultContextWindow = 32000
	}
	if cfg.Bedrock.DefaultMaxTokens == 0 {
		cfg.Bedrock.DefaultMaxTokens = 4096
	}
	if cfg.Routing.UnhealthyCooldown == 0 {
		cfg.Routing.UnhealthyCooldown = 5 * time.Minute
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyRAGDefaults(cfg *RAGConfig) {
	if cfg.Store.Dimension == 0 {
		cfg.Store.Dimension = 1536
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Chunking.MinChunkSize == 0 {
		cfg.Chunking.MinChunkSize = 100
	}
	if cfg.Embeddings.BatchSize == 0 {
		cfg.Embeddings.BatchSize = 100
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.DefaultThreshold == 0 {
		cfg.Search.DefaultThreshold = 0.7
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 20
	}
}

var validDMScopes = map[string]bool{
	"main": true, "per-peer": true, "per-channel-peer": true,
}

var validConversationScopes = map[string]bool{
	"thread": true, "channel": true, "user": true, "group": true, "dm": true, "": true,
}

var validResetModes = map[string]bool{
	"daily": true, "idle": true, "daily+idle": true, "never": true, "": true,
}

var validMemoryScopes = map[string]bool{
	"global": true, "session": true, "": true,
}

var validHeartbeatModes = map[string]bool{
	"file": true, "log": true, "": true,
}

func validateSessionConfig(cfg *Config) []string {
	var issues []string
	s := cfg.Session
	if !validConversationScopes[s.DefaultScope] {
		issues = append(issues, fmt.Sprintf("session.default_scope %q is invalid", s.DefaultScope))
	}
	if !validConversationScopes[s.ThreadScope] {
		issues = append(issues, fmt.Sprintf("session.thread_scope %q is invalid", s.ThreadScope))
	}
	if s.Scoping.DMScope != "" && !validDMScopes[s.Scoping.DMScope] {
		issues = append(issues, fmt.Sprintf("session.scoping.dm_scope %q is invalid", s.Scoping.DMScope))
	}
	if !validResetModes[s.Scoping.Reset.Mode] {
		issues = append(issues, fmt.Sprintf("session.scoping.reset.mode %q is invalid", s.Scoping.Reset.Mode))
	}
	if !validMemoryScopes[s.Memory.Scope] {
		issues = append(issues, fmt.Sprintf("session.memory.scope %q is invalid", s.Memory.Scope))
	}
	if s.MemoryFlush.Enabled && s.MemoryFlush.Threshold <= 0 {
		issues = append(issues, "session.memory_flush.threshold must be positive when memory_flush is enabled")
	}
	if s.Heartbeat.Enabled {
		if !validHeartbeatModes[s.Heartbeat.Mode] {
			issues = append(issues, fmt.Sprintf("session.heartbeat.mode %q is invalid", s.Heartbeat.Mode))
		}
		if strings.TrimSpace(s.Heartbeat.File) == "" {
			issues = append(issues, "session.heartbeat.file must be set when heartbeat is enabled")
		}
	}
	return issues
}

func validateWorkspaceConfig(cfg *Config) []string {
	var issues []string
	if cfg.Workspace.MaxChars < 0 {
		issues = append(issues, "workspace.max_chars must not be negative")
	}
	return issues
}

var validApprovalProfiles = map[string]bool{
	"coding": true, "messaging": true, "readonly": true, "full": true, "minimal": true, "": true,
}

func validateToolsConfig(cfg *Config) []string {
	var issues []string
	approval := cfg.Tools.Execution.Approval
	if !validApprovalProfiles[approval.Profile] {
		issues = append(issues, fmt.Sprintf("tools.execution.approval.profile %q is invalid", approval.Profile))
	}
	return issues
}

var validMemorySearchModes = map[string]bool{
	"keyword": true, "semantic": true, "hybrid": true, "": true,
}

func validateMemorySearchConfig(cfg *Config) []string {
	var issues []string
	ms := cfg.Tools.MemorySearch
	if !ms.Enabled {
		return issues
	}
	if ms.MaxResults < 0 {
		issues = append(issues, "tools.memory_search.max_results must not be negative")
	}
	if !validMemorySearchModes[ms.Mode] {
		issues = append(issues, fmt.Sprintf("tools.memory_search.mode %q is invalid", ms.Mode))
	}
	if ms.Embeddings.CacheTTL < 0 {
		issues = append(issues, "tools.memory_search.embeddings.cache_ttl must not be negative")
	}
	if ms.Embeddings.Timeout < 0 {
		issues = append(issues, "tools.memory_search.embeddings.timeout must not be negative")
	}
	return issues
}
