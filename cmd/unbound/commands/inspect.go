package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unbound-ml/unbound/snapshot"
)

// InspectCmd represents the inspect command
var InspectCmd = &cobra.Command{
	Use:   "inspect <file.ubd>",
	Short: "Inspect a snapshot file",
	Long: `Inspect a snapshot (.ubd) file: format version, stored arrays with
their types and shapes, and user metadata.

The file's checksum is verified while opening unless --skip-checksum
is given.

Examples:
  unbound inspect weights.ubd
  unbound inspect weights.ubd --json
  unbound inspect huge.ubd --skip-checksum`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectJSON         bool
	inspectSkipChecksum bool
)

func init() {
	InspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	InspectCmd.Flags().BoolVar(&inspectSkipChecksum, "skip-checksum", false, "Skip checksum verification")
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	r, err := snapshot.OpenWithOptions(path, snapshot.Options{SkipChecksum: inspectSkipChecksum})
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer r.Close()

	h := r.Header()

	if inspectJSON {
		data, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal header: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	fmt.Printf("Snapshot: %s (%d bytes)\n", path, info.Size())
	fmt.Printf("Format version: %d\n", h.FormatVersion)
	fmt.Printf("Created: %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if inspectSkipChecksum {
		fmt.Println("Checksum: skipped")
	} else {
		fmt.Println("Checksum: ok")
	}

	fmt.Printf("\nArrays (%d):\n", len(h.Arrays))
	for _, a := range h.Arrays {
		fmt.Printf("  %-24s %-8s %-14v %d bytes\n", a.Name, a.DType, a.Shape, a.Size)
	}

	if len(h.Metadata) > 0 {
		fmt.Printf("\nMetadata (%d):\n", len(h.Metadata))
		for k, v := range h.Metadata {
			fmt.Printf("  %s = %s\n", k, v)
		}
	}

	return nil
}
