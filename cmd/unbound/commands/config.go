package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/unbound-ml/unbound/internal/config"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and validate Unbound configuration",
	Long: `Display and validate the merged Unbound configuration.

Configuration sources (in order of precedence):
1. Environment variables (UNBOUND_* prefix)
2. Project config (./unbound.toml, searches up directories)
3. User config (~/.unbound/config.toml)
4. Default values

Examples:
  unbound config show                 # Show merged configuration
  unbound config show --format json   # Show configuration as JSON
  unbound config validate             # Validate current configuration
  unbound config path                 # Show the user config path`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the merged configuration",
	RunE:  runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the user config file path",
	RunE:  runConfigPath,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# Unbound configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json)", configFormat)
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("Configuration is valid")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.DefaultUserConfigPath())
	return nil
}
