package policy

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvPolicyFile is the override variable from spec.md §6: when set, it
// takes precedence over any default policy file location.
const EnvPolicyFile = "RADIUM_POLICY_FILE"

// DefaultPolicyFilename is the policy file name looked for under a
// workspace root when no override is given.
const DefaultPolicyFilename = "policy.toml"

// ResolvePath returns the policy file path to load: RADIUM_POLICY_FILE if
// set, otherwise "<workspaceRoot>/.radium/policy.toml".
func ResolvePath(workspaceRoot string) string {
	if override := strings.TrimSpace(os.Getenv(EnvPolicyFile)); override != "" {
		return override
	}
	return filepath.Join(workspaceRoot, ".radium", DefaultPolicyFilename)
}
