package extensions

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`{
		"name": "gh-helpers",
		"version": "1.0.0",
		"description": "GitHub helper commands",
		"author": "someone",
		"components": {
			"prompts": ["prompts/review.md"],
			"mcp_servers": ["mcp/github.json"],
			"commands": ["commands/pr.toml"]
		},
		"dependencies": ["base-toolkit@1.0.0"]
	}`)

	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Name != "gh-helpers" || m.Version != "1.0.0" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if len(m.Components.Commands) != 1 {
		t.Fatalf("expected 1 command component, got %d", len(m.Components.Commands))
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestManifestValidate_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		m    Manifest
	}{
		{"no name", Manifest{Version: "1.0.0"}},
		{"no version", Manifest{Name: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.m.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestManifestValidate_UnsafePaths(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"absolute", "/etc/passwd"},
		{"parent escape", "../../etc/passwd"},
		{"nested escape", "commands/../../escape.toml"},
		{"null byte", "commands/evil\x00.toml"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Manifest{Name: "x", Version: "1.0.0", Components: Components{Commands: []string{tc.path}}}
			err := m.Validate()
			if err == nil {
				t.Fatal("expected unsafe path error")
			}
		})
	}
}

func TestManifestVerifyAssets(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "prompts", "review.md"), "# review\n")
	mustWrite(t, filepath.Join(root, "mcp", "github.json"), `{"command":"gh-mcp"}`)
	mustWrite(t, filepath.Join(root, "commands", "pr.toml"), "name = \"pr\"\ntemplate = \"open a pr for {{args}}\"\n")

	m := Manifest{
		Name:    "gh-helpers",
		Version: "1.0.0",
		Components: Components{
			Prompts:    []string{"prompts/review.md"},
			MCPServers: []string{"mcp/github.json"},
			Commands:   []string{"commands/pr.toml"},
		},
	}
	if err := m.VerifyAssets(root); err != nil {
		t.Fatalf("VerifyAssets: %v", err)
	}
}

func TestManifestVerifyAssets_MissingFile(t *testing.T) {
	root := t.TempDir()
	m := Manifest{
		Name:       "x",
		Version:    "1.0.0",
		Components: Components{Prompts: []string{"prompts/missing.md"}},
	}
	if err := m.VerifyAssets(root); err == nil {
		t.Fatal("expected error for missing asset")
	}
}

func TestManifestVerifyAssets_BadCommandSpec(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "commands", "broken.toml"), "not valid toml {{{")
	m := Manifest{
		Name:       "x",
		Version:    "1.0.0",
		Components: Components{Commands: []string{"commands/broken.toml"}},
	}
	if err := m.VerifyAssets(root); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestManifestVerifyAssets_CommandMissingTemplate(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "commands", "incomplete.toml"), "name = \"pr\"\n")
	m := Manifest{
		Name:       "x",
		Version:    "1.0.0",
		Components: Components{Commands: []string{"commands/incomplete.toml"}},
	}
	if err := m.VerifyAssets(root); err == nil {
		t.Fatal("expected missing-template error")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
