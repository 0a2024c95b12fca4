package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unbound-ml/unbound/cmd/unbound/commands"
	"github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/backend/sparse"
	"github.com/unbound-ml/unbound/internal/config"
	"github.com/unbound-ml/unbound/logger"
)

var rootCmd = &cobra.Command{
	Use:   "unbound",
	Short: "Unbound - bounds-unchecked arrays with capability dispatch",
	Long: `Unbound - bounds-unchecked array storage with capability dispatch.

Unbound wraps array-like storages in a zero-overhead access layer and
routes operations through a forwarding-rule registry. The CLI manages
its configuration and inspects its snapshot files.

Available commands:
  version - Show version information
  mode    - Show or change the capability mode
  config  - Show and validate configuration
  inspect - Inspect a snapshot (.ubd) file

Examples:
  unbound mode get                # Show current capability mode
  unbound mode set explicit       # Require explicit rules, persist it
  unbound config show             # Show merged configuration
  unbound inspect weights.ubd     # List arrays in a snapshot`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Plain-output commands keep stdout clean for piping.
		if cmd.Name() != "show" && cmd.Name() != "get" {
			if err := logger.Initialize(false); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.Apply(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
		dense.SetParallelism(cfg.ParallelConfig())
		sparse.SetParallelism(cfg.ParallelConfig())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.VersionCmd)
	rootCmd.AddCommand(commands.ModeCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.InspectCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
