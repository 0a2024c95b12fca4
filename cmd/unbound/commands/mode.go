package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unbound-ml/unbound/internal/capmode"
	"github.com/unbound-ml/unbound/internal/config"
)

// ModeCmd represents the mode command
var ModeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show or change the capability mode",
	Long: `Show or change the process-wide capability mode.

The mode decides what happens when dispatch finds no explicit
forwarding rule for an operation:

  structural - fall back to the generic implementation (default)
  explicit   - fail the call with a no-matching-rule error

Changes are persisted to the configuration file and take effect in
new processes. Running processes keep their cached dispatch decisions
until they rebuild plans.

Examples:
  unbound mode get
  unbound mode set explicit
  unbound mode set structural --file ./unbound.toml`,
}

var modeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current capability mode",
	RunE:  runModeGet,
}

var modeSetCmd = &cobra.Command{
	Use:   "set <structural|explicit>",
	Short: "Change the capability mode and persist it",
	Args:  cobra.ExactArgs(1),
	RunE:  runModeSet,
}

var modeFile string

func init() {
	modeSetCmd.Flags().StringVar(&modeFile, "file", "", "Config file to write (default: user config)")

	ModeCmd.AddCommand(modeGetCmd)
	ModeCmd.AddCommand(modeSetCmd)
}

func runModeGet(cmd *cobra.Command, args []string) error {
	fmt.Println(capmode.Get())
	return nil
}

func runModeSet(cmd *cobra.Command, args []string) error {
	mode, err := capmode.Parse(args[0])
	if err != nil {
		return err
	}

	path := modeFile
	if path == "" {
		path = config.DefaultUserConfigPath()
	}

	if err := config.UpdateMode(path, mode); err != nil {
		return fmt.Errorf("failed to persist mode: %w", err)
	}

	fmt.Printf("Capability mode set to %s (%s)\n", mode, path)
	fmt.Println("New processes pick it up at startup; running processes keep cached dispatch decisions until they rebuild plans.")
	return nil
}
