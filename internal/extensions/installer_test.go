package extensions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/radium-run/radium/internal/commands"
)

func writeTestExtension(t *testing.T, dir, name, version string, deps []string) {
	t.Helper()
	manifest := `{
		"name": "` + name + `",
		"version": "` + version + `",
		"components": {
			"commands": ["commands/hello.toml"]
		}`
	if len(deps) > 0 {
		manifest += `,"dependencies": [`
		for i, d := range deps {
			if i > 0 {
				manifest += ","
			}
			manifest += `"` + d + `"`
		}
		manifest += `]`
	}
	manifest += `}`
	mustWrite(t, filepath.Join(dir, ManifestFilename), manifest)
	mustWrite(t, filepath.Join(dir, "commands", "hello.toml"),
		"name = \"hello\"\ndescription = \"say hi\"\ntemplate = \"hi {{args}}\"\n")
}

func TestManagerInstallAndList(t *testing.T) {
	source := t.TempDir()
	writeTestExtension(t, source, "greeter", "1.0.0", nil)

	baseDir := t.TempDir()
	registry := commands.NewRegistry(nil)
	mgr := NewManager(baseDir, registry, nil)

	installed, err := mgr.Install(context.Background(), source)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if installed.Manifest.Name != "greeter" {
		t.Fatalf("unexpected name %q", installed.Manifest.Name)
	}
	if _, err := os.Stat(filepath.Join(installed.Path, ManifestFilename)); err != nil {
		t.Fatalf("expected manifest copied: %v", err)
	}

	cmd, ok := registry.Get("greeter:hello")
	if !ok {
		t.Fatal("expected command registered under namespace greeter:hello")
	}
	if cmd.Source != "extension:greeter" {
		t.Fatalf("unexpected source %q", cmd.Source)
	}

	list := mgr.List()
	if len(list) != 1 || list[0].Manifest.Name != "greeter" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestManagerInstall_MissingDependency(t *testing.T) {
	source := t.TempDir()
	writeTestExtension(t, source, "addon", "1.0.0", []string{"base-toolkit"})

	mgr := NewManager(t.TempDir(), commands.NewRegistry(nil), nil)
	if _, err := mgr.Install(context.Background(), source); err == nil {
		t.Fatal("expected dependency error")
	}
}

func TestManagerInstall_DependencySatisfied(t *testing.T) {
	baseSource := t.TempDir()
	writeTestExtension(t, baseSource, "base-toolkit", "1.0.0", nil)

	addonSource := t.TempDir()
	writeTestExtension(t, addonSource, "addon", "1.0.0", []string{"base-toolkit"})

	registry := commands.NewRegistry(nil)
	mgr := NewManager(t.TempDir(), registry, nil)

	if _, err := mgr.Install(context.Background(), baseSource); err != nil {
		t.Fatalf("install base: %v", err)
	}
	if _, err := mgr.Install(context.Background(), addonSource); err != nil {
		t.Fatalf("install addon: %v", err)
	}
	if len(mgr.List()) != 2 {
		t.Fatalf("expected 2 installed extensions, got %d", len(mgr.List()))
	}
}

func TestManagerRemove(t *testing.T) {
	source := t.TempDir()
	writeTestExtension(t, source, "greeter", "1.0.0", nil)

	registry := commands.NewRegistry(nil)
	mgr := NewManager(t.TempDir(), registry, nil)

	installed, err := mgr.Install(context.Background(), source)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if err := mgr.Remove("greeter"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := registry.Get("greeter:hello"); ok {
		t.Fatal("expected command unregistered after removal")
	}
	if _, err := os.Stat(installed.Path); !os.IsNotExist(err) {
		t.Fatalf("expected extension directory removed, stat err=%v", err)
	}
	if _, ok := mgr.Get("greeter"); ok {
		t.Fatal("expected extension no longer tracked")
	}
}

func TestManagerInstall_RejectsUnsafeManifest(t *testing.T) {
	source := t.TempDir()
	mustWrite(t, filepath.Join(source, ManifestFilename), `{
		"name": "evil",
		"version": "1.0.0",
		"components": {"commands": ["../../../etc/passwd"]}
	}`)

	mgr := NewManager(t.TempDir(), commands.NewRegistry(nil), nil)
	if _, err := mgr.Install(context.Background(), source); err == nil {
		t.Fatal("expected unsafe path rejection")
	}
}
