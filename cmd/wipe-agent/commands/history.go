package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded wipe runs and their status",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := ensureDirectories(cfg.SQLitePath, ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	runs, err := repo.List(cmd.Context(), historyLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(runs) == 0 {
		fmt.Println("No wipe runs found")
		return nil
	}

	fmt.Printf("%-36s %-18s %-24s %-30s\n", "RUN ID", "STATUS", "TARGET", "UPDATED")
	fmt.Println("------------------------------------------------------------------------------------------------------------")

	for _, r := range runs {
		target := r.ResolvedTarget
		if target == "" {
			target = "-"
		}
		fmt.Printf("%-36s %-18s %-24s %-30s\n", r.RunID, r.Status, target, r.UpdatedAt)
		if r.ErrorMessage != "" {
			fmt.Printf("    %s\n", r.ErrorMessage)
		}
	}

	return nil
}
