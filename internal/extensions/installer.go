package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/radium-run/radium/internal/commands"
)

// ManifestFilename is the name of an extension's manifest file.
const ManifestFilename = "manifest.json"

// Installed describes an extension that has been copied into the
// extension directory and had its commands registered.
type Installed struct {
	Manifest *Manifest
	Path     string
}

// Manager installs, lists, and removes extension packages, and keeps
// their commands registered into a shared command registry under the
// namespace "<extension>:<command>".
type Manager struct {
	baseDir  string
	registry *commands.Registry
	logger   *slog.Logger

	mu        sync.RWMutex
	installed map[string]*Installed
	// registered tracks the command names this manager added, per
	// extension, so Remove can unregister exactly what it added.
	registered map[string][]string
}

// NewManager creates an extension manager rooted at baseDir (typically
// "<workspace>/.radium/extensions"). registry may be nil, in which case
// commands are validated but never registered.
func NewManager(baseDir string, registry *commands.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		baseDir:    baseDir,
		registry:   registry,
		logger:     logger.With("component", "extensions.manager"),
		installed:  make(map[string]*Installed),
		registered: make(map[string][]string),
	}
}

// Install runs the full install pipeline against a staged source
// directory (already unpacked on disk, e.g. an extracted archive or a
// local path given on the command line):
//
//  1. parse and validate the manifest
//  2. reject unsafe component paths
//  3. verify every declared asset exists and parses
//  4. verify declared dependencies are already installed
//  5. copy the package into the extension directory
//  6. register its commands under "<name>:<command>"
func (m *Manager) Install(ctx context.Context, sourceDir string) (*Installed, error) {
	manifestPath := filepath.Join(sourceDir, ManifestFilename)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	if err := manifest.VerifyAssets(sourceDir); err != nil {
		return nil, err
	}

	m.mu.RLock()
	for _, dep := range manifest.Dependencies {
		depName := dep
		if idx := strings.IndexByte(dep, '@'); idx >= 0 {
			depName = dep[:idx]
		}
		if _, ok := m.installed[depName]; !ok {
			m.mu.RUnlock()
			return nil, fmt.Errorf("dependency %q is not installed", depName)
		}
	}
	m.mu.RUnlock()

	destDir := filepath.Join(m.baseDir, manifest.Name)
	if err := copyDir(sourceDir, destDir); err != nil {
		return nil, fmt.Errorf("install %s: %w", manifest.Name, err)
	}

	registeredNames, err := m.registerCommands(manifest, destDir)
	if err != nil {
		_ = os.RemoveAll(destDir)
		return nil, err
	}

	installed := &Installed{Manifest: manifest, Path: destDir}

	m.mu.Lock()
	m.installed[manifest.Name] = installed
	m.registered[manifest.Name] = registeredNames
	m.mu.Unlock()

	m.logger.Info("extension installed",
		"name", manifest.Name,
		"version", manifest.Version,
		"commands", len(registeredNames))

	return installed, nil
}

// registerCommands loads each command component and registers it into
// the shared registry under the extension's namespace.
func (m *Manager) registerCommands(manifest *Manifest, root string) ([]string, error) {
	if m.registry == nil {
		return nil, nil
	}
	names := make([]string, 0, len(manifest.Components.Commands))
	for _, rel := range manifest.Components.Commands {
		spec, err := LoadCommandSpec(root, rel)
		if err != nil {
			m.unregisterAll(names)
			return nil, err
		}
		namespace := spec.Namespace
		if namespace == "" {
			namespace = manifest.Name
		}
		qualified := namespace + ":" + spec.Name
		cmd := &commands.Command{
			Name:        qualified,
			Description: spec.Description,
			AcceptsArgs: true,
			Source:      "extension:" + manifest.Name,
			Category:    "extensions",
			Handler:     newTemplateHandler(spec.Template),
		}
		if err := m.registry.Register(cmd); err != nil {
			m.unregisterAll(names)
			return nil, fmt.Errorf("register command %q: %w", qualified, err)
		}
		names = append(names, qualified)
	}
	return names, nil
}

func (m *Manager) unregisterAll(names []string) {
	if m.registry == nil {
		return
	}
	for _, n := range names {
		m.registry.Unregister(n)
	}
}

// Remove uninstalls an extension: unregisters its commands and deletes
// its directory.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	installed, ok := m.installed[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("extension %q is not installed", name)
	}
	registeredNames := m.registered[name]
	delete(m.installed, name)
	delete(m.registered, name)
	m.mu.Unlock()

	m.unregisterAll(registeredNames)

	if err := os.RemoveAll(installed.Path); err != nil {
		return fmt.Errorf("remove extension directory: %w", err)
	}
	m.logger.Info("extension removed", "name", name)
	return nil
}

// List returns installed extensions sorted by name.
func (m *Manager) List() []*Installed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Installed, 0, len(m.installed))
	for _, inst := range m.installed {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// Get returns the installed extension by name, if present.
func (m *Manager) Get(name string) (*Installed, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.installed[name]
	return inst, ok
}

// copyDir recursively copies sourceDir into destDir, creating destDir
// fresh. It refuses to overwrite an existing install in place; callers
// that want upgrade-in-place semantics should Remove first.
func copyDir(sourceDir, destDir string) error {
	if _, err := os.Stat(destDir); err == nil {
		return fmt.Errorf("destination already exists: %s", destDir)
	}
	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return err
	}

	tmp := destDir + ".staging"
	_ = os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return err
	}

	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(tmp, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
	if err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	if err := os.Rename(tmp, destDir); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
