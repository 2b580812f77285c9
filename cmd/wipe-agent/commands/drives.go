package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securewipe/wipe-agent/pkg/errors"
	"github.com/securewipe/wipe-agent/pkg/inventory"
	"github.com/securewipe/wipe-agent/pkg/system"
)

var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "List physical drives on this machine",
	Args:  cobra.NoArgs,
	RunE:  runDrives,
}

func init() {
	rootCmd.AddCommand(drivesCmd)
}

func runDrives(cmd *cobra.Command, args []string) error {
	lister := inventory.NewLister(system.NewExecRunner(), cfg.InventoryTool)

	drives, err := lister.ListPhysicalDrives(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "inventory failed")
	}

	if len(drives) == 0 {
		fmt.Println("No physical drives found")
		return nil
	}

	fmt.Printf("%-16s %-20s %-16s %-30s\n", "NAME", "PATH", "SIZE", "MODEL")
	fmt.Println("------------------------------------------------------------------------------------")

	for _, d := range drives {
		model := d.Model
		if model == "" {
			model = "-"
		}
		fmt.Printf("%-16s %-20s %-16s %-30s\n", d.Name, d.Path, humanSize(d.SizeBytes), model)
	}

	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
