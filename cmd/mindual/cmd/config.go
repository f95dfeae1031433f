package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/mindual/internal/config"
	"github.com/Aman-CERP/mindual/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/mindual/config.yaml)
  3. Project config (.mindual.yaml in the working directory)
  4. .env in the working directory (never overrides the environment)
  5. Environment variables (DB_PATH, GEMINI_API_KEY, GEMINI_MODEL_ID,
     RAG_MAX_DOCS, MINDUAL_*)

GEMINI_API_KEY is only read from the environment or .env.`,
		Example: `  # Create the user config with defaults
  mindual config init

  # Show the effective configuration
  mindual config show

  # Roll back the last 'config init --force'
  mindual config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file with every default written out.

With --force an existing file is backed up, settings added since it was
written are filled in with their defaults, and your values are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Upgrade an existing configuration (backs it up first)")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()
	if configPath == "" {
		return fmt.Errorf("cannot determine the user config directory")
	}

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Status("💡", "Use --force to add new defaults (your settings are kept)")
			return nil
		}
		return runConfigUpgrade(out, configPath)
	}

	if err := config.NewConfig().WriteYAML(configPath); err != nil {
		return err
	}
	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Status("💡", "Put GEMINI_API_KEY in your environment or a .env file")
	return nil
}

// runConfigUpgrade backs up the user config and fills in new defaults.
func runConfigUpgrade(out *output.Writer, configPath string) error {
	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	existing, err := config.LoadUserConfig()
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("config file disappeared during upgrade")
	}

	added := existing.MergeNewDefaults()
	if err := existing.WriteYAML(configPath); err != nil {
		return fmt.Errorf("failed to write upgraded config: %w", err)
	}

	out.Success("Configuration upgraded")
	out.Statusf("📁", "Location: %s", configPath)
	out.Statusf("💾", "Backup: %s", backupPath)
	if len(added) == 0 {
		out.Status("", "Already up to date")
		return nil
	}
	out.Status("✨", "New options added with defaults:")
	for _, key := range added {
		out.Statusf("", "  - %s", key)
	}
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration as YAML. By default the merged configuration from
every source is shown; --source selects one layer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg  *config.Config
		desc string
	)
	switch source {
	case "merged":
		merged, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = merged
		desc = "merged (defaults + user + project + .env + environment)"

	case "user":
		path := config.GetUserConfigPath()
		user, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if user == nil {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", path)
			out.Status("💡", "Run 'mindual config init' to create one")
			return nil
		}
		cfg = user
		desc = fmt.Sprintf("user (%s)", path)

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path := filepath.Join(cwd, config.ProjectConfigName)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			out.Warning("No project configuration file found")
			out.Statusf("📁", "Expected at: %s", path)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read project config: %w", err)
		}
		cfg = &config.Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse project config: %w", err)
		}
		desc = fmt.Sprintf("project (%s)", path)

	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	key := "not set"
	if cfg.Gemini.APIKey != "" {
		key = "set"
	}
	out.Statusf("📋", "Configuration source: %s", desc)
	out.Statusf("🔑", "GEMINI_API_KEY: %s", key)
	out.Newline()
	_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the user config from a backup",
		Long: `Restore the user configuration from a backup made by 'config init --force'.
Without an argument the newest backup is used. The current file is backed
up first, so a restore can itself be undone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			var backup string
			switch {
			case len(args) == 1:
				backup = args[0]
			case len(backups) > 0:
				backup = backups[0]
			default:
				out.Warning("No configuration backups found")
				return nil
			}

			if err := config.RestoreUserConfig(backup); err != nil {
				return err
			}
			out.Successf("Restored %s", backup)
			return nil
		},
	}
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
