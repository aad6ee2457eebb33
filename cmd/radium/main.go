// Command radium runs and administers a Radium agent runtime: credential
// vault, policy engine, hooks, workflow executor, and the surrounding
// session/extension infrastructure described in SPEC_FULL.md.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/radium-run/radium/internal/commands"
	"github.com/radium-run/radium/internal/config"
	"github.com/radium-run/radium/internal/extensions"
	"github.com/radium-run/radium/internal/hooks"
	"github.com/radium-run/radium/internal/onboard"
	"github.com/radium-run/radium/internal/policy"
	"github.com/radium-run/radium/internal/privacy"
	"github.com/radium-run/radium/internal/sessionstore"
	"github.com/radium-run/radium/internal/vault"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "radium",
		Short:         "Radium autonomous agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "radium.yaml", "path to the runtime config file")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newValidateCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the radium version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var opts onboard.Options

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter radium.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigPath == "" {
				opts.ConfigPath = "radium.yaml"
			}
			raw := onboard.BuildConfig(opts)
			if err := onboard.WriteConfig(opts.ConfigPath, raw); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.ConfigPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "out", "radium.yaml", "output config path")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database-url", "", "database connection string")
	cmd.Flags().StringVar(&opts.Provider, "provider", "anthropic", "default LLM provider")
	cmd.Flags().StringVar(&opts.ProviderKey, "provider-key", "", "API key for the default provider")
	cmd.Flags().StringVar(&opts.VaultPath, "vault-path", "", "credential vault path")
	cmd.Flags().StringVar(&opts.PolicyFile, "policy-file", "", "tool policy TOML file path")
	cmd.Flags().StringVar(&opts.WorkspacePath, "workspace", "", "workspace root directory")

	return cmd
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file without starting the runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config %s is valid (default provider: %s)\n", *configPath, cfg.LLM.DefaultProvider)
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the radium runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			rt, err := buildRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			logger.Info("radium runtime initialized",
				"default_provider", cfg.LLM.DefaultProvider,
				"policy_file", cfg.Policy.File,
				"hooks_discovered", len(rt.hookCatalog),
				"extensions_dir", cfg.Extensions.BaseDir,
			)
			logger.Info("serve is not wired to a transport in this build; components are initialized and idle")
			return nil
		},
	}
}

// runtime bundles the long-lived components a serving radium process needs.
// It intentionally holds no network listeners: those are environment-specific
// and left to deployment-specific wiring (see DESIGN.md).
type runtime struct {
	vault       *vault.Vault
	policy      *policy.Engine
	reloader    *policy.Reloader
	hooks       *hooks.Registry
	hookCatalog []*hooks.HookEntry
	privacy     *privacy.Filter
	sessions    *sessionstore.Store
	extensions  *extensions.Manager
}

func (r *runtime) Close() {
	if r.reloader != nil {
		r.reloader.Stop()
	}
}

func buildRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{}

	if cfg.Vault.Path != "" {
		password := os.Getenv(cfg.Vault.PasswordEnv)
		v, err := vault.Open(cfg.Vault.Path, password)
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		rt.vault = v
	}

	engine := policy.NewEngine(logger)
	if cfg.Policy.File != "" {
		if err := engine.LoadFile(cfg.Policy.File); err != nil {
			return nil, fmt.Errorf("load policy file: %w", err)
		}
		if len(cfg.Policy.Webhooks) > 0 {
			webhooks := make([]policy.WebhookConfig, len(cfg.Policy.Webhooks))
			for i, wh := range cfg.Policy.Webhooks {
				webhooks[i] = policy.WebhookConfig{
					URL:         wh.URL,
					Token:       wh.Token,
					MinSeverity: policy.Severity(wh.MinSeverity),
				}
			}
			engine.SetAlertManager(policy.NewAlertManager(webhooks, logger))
		}
		if cfg.Policy.Watch {
			rt.reloader = policy.NewReloader(engine, cfg.Policy.File, logger)
			if err := rt.reloader.Start(); err != nil {
				return nil, fmt.Errorf("start policy reloader: %w", err)
			}
		}
	}
	rt.policy = engine

	rt.hooks = hooks.NewRegistry(logger)

	sources := make([]hooks.DiscoverySource, 0, len(cfg.Hooks.Dirs))
	for _, dir := range cfg.Hooks.Dirs {
		sources = append(sources, hooks.NewLocalSource(dir, hooks.SourceExtra, 0))
	}
	if len(sources) > 0 {
		entries, err := hooks.DiscoverAll(context.Background(), sources)
		if err != nil {
			logger.Warn("hook discovery failed", "error", err)
		}
		rt.hookCatalog = entries
	}

	if cfg.Privacy.Enabled {
		allowlist := make(map[string]bool, len(cfg.Privacy.Allowlist))
		for _, name := range cfg.Privacy.Allowlist {
			allowlist[name] = true
		}
		rt.privacy = privacy.NewFilter(privacyStyle(cfg.Privacy.Style), allowlist)
	}

	rt.sessions = sessionstore.New(cfg.SessionStore.Root, logger)

	if cfg.Extensions.Enabled {
		rt.extensions = extensions.NewManager(cfg.Extensions.BaseDir, commands.NewRegistry(logger), logger)
	}

	return rt, nil
}

// privacyStyle maps a config string to a privacy.Style, defaulting to a full mask.
func privacyStyle(name string) privacy.Style {
	switch name {
	case "partial":
		return privacy.StylePartial
	case "hash":
		return privacy.StyleHash
	default:
		return privacy.StyleFull
	}
}
