package extensions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
)

// ErrUnsafePath indicates a component path attempted to escape the
// extension directory.
var ErrUnsafePath = fmt.Errorf("unsafe component path")

// Manifest describes an installable extension package: a directory of
// prompts, MCP server configs, and slash commands bundled under one
// name/version, as declared by the package's manifest.json.
type Manifest struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	Components  Components `json:"components"`

	// Dependencies lists other extension names (optionally
	// "name@version") that must already be installed.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Components lists the asset files an extension contributes, each path
// relative to the extension's root directory.
type Components struct {
	Prompts    []string `json:"prompts,omitempty"`
	MCPServers []string `json:"mcp_servers,omitempty"`
	Commands   []string `json:"commands,omitempty"`
}

// CommandSpec is a single extension-provided slash command definition,
// decoded from a component TOML file.
type CommandSpec struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Template    string `toml:"template"`
	Namespace   string `toml:"namespace"`
}

// ParseManifest decodes a manifest.json document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Validate checks required fields and rejects unsafe component paths.
// It does not touch the filesystem; see VerifyAssets for that.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("manifest: version is required")
	}
	for _, p := range m.allComponentPaths() {
		if err := validateComponentPath(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) allComponentPaths() []string {
	all := make([]string, 0, len(m.Components.Prompts)+len(m.Components.MCPServers)+len(m.Components.Commands))
	all = append(all, m.Components.Prompts...)
	all = append(all, m.Components.MCPServers...)
	all = append(all, m.Components.Commands...)
	return all
}

// validateComponentPath rejects absolute paths, parent-directory escapes,
// and embedded null bytes, mirroring the native-plugin loader's path
// traversal defense (internal/plugins.ValidatePluginPath) but scoped to
// component-relative manifest entries rather than filesystem arguments.
func validateComponentPath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty component path", ErrUnsafePath)
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("%w: null byte in %q", ErrUnsafePath, p)
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("%w: absolute path %q", ErrUnsafePath, p)
	}
	cleaned := filepath.Clean(p)
	for _, seg := range strings.Split(cleaned, string(filepath.Separator)) {
		if seg == ".." {
			return fmt.Errorf("%w: %q escapes extension root", ErrUnsafePath, p)
		}
	}
	return nil
}

// VerifyAssets checks that every declared component file exists under
// root and parses according to its declared syntax: commands as TOML
// decoding into CommandSpec, mcp_servers as JSON or TOML, prompts as
// plain UTF-8 text (existence only).
func (m *Manifest) VerifyAssets(root string) error {
	for _, p := range m.Components.Prompts {
		if err := verifyFileExists(root, p); err != nil {
			return err
		}
	}
	for _, p := range m.Components.MCPServers {
		if err := verifyParses(root, p, verifyMCPServerConfig); err != nil {
			return err
		}
	}
	for _, p := range m.Components.Commands {
		if err := verifyParses(root, p, verifyCommandSpec); err != nil {
			return err
		}
	}
	return nil
}

func verifyFileExists(root, rel string) error {
	full := filepath.Join(root, rel)
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("asset %q: %w", rel, err)
	}
	if info.IsDir() {
		return fmt.Errorf("asset %q: is a directory", rel)
	}
	return nil
}

func verifyParses(root, rel string, parse func([]byte) error) error {
	full := filepath.Join(root, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("asset %q: %w", rel, err)
	}
	if err := parse(data); err != nil {
		return fmt.Errorf("asset %q: %w", rel, err)
	}
	return nil
}

func verifyMCPServerConfig(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var v map[string]any
		return json.Unmarshal(data, &v)
	}
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return err
	}
	_ = tree
	return nil
}

func verifyCommandSpec(data []byte) error {
	var spec CommandSpec
	if err := toml.Unmarshal(data, &spec); err != nil {
		return err
	}
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("command spec missing name")
	}
	if strings.TrimSpace(spec.Template) == "" {
		return fmt.Errorf("command spec %q missing template", spec.Name)
	}
	return nil
}

// LoadCommandSpec reads and decodes one command component file.
func LoadCommandSpec(root, rel string) (*CommandSpec, error) {
	full := filepath.Join(root, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read command spec %q: %w", rel, err)
	}
	var spec CommandSpec
	if err := toml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse command spec %q: %w", rel, err)
	}
	return &spec, nil
}
