package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/tasksync/internal/config"
	"github.com/felixgeelhaar/tasksync/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View TaskSync configuration",
	Long: `Manage TaskSync configuration stored at ~/.tasksync/config.yaml

Every key can also be set with a TASKSYNC_ environment variable, with dots
replaced by underscores, e.g. TASKSYNC_BACKEND_URL for backend.url.

Examples:
  # Write a starter config file
  tasksync config init

  # View the effective configuration
  tasksync config view

  # Show configuration file path
  tasksync config path
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Long:  `Display the configuration after file, environment and flags are merged. Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	cfg := *cc.Config
	cfg.Backend.AnonKey = mask(cfg.Backend.AnonKey)
	cfg.News.APIKey = mask(cfg.News.APIKey)
	cfg.Assistant.APIKey = mask(cfg.Assistant.APIKey)

	if !cc.Text() {
		return cc.Output(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return cc.Output(string(data))
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	return cc.Output(configFile(cc))
}

func configFile(cc *CommandContext) string {
	if cc.ConfigPath != "" {
		return cc.ConfigPath
	}
	return config.DefaultPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path := configFile(cc)

	if _, err := os.Stat(path); err == nil && !configForce {
		return errors.New(errors.ErrCodeConfigInvalid, "config file already exists: "+path).
			WithSuggestion("Pass --force to overwrite it")
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write config file", err)
	}
	return cc.Output(cc.Styles().Success.Render("Wrote " + path))
}
