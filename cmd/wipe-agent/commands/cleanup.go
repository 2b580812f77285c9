package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
)

var (
	cleanupJournal  bool
	cleanupFSMState bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove finished runs and workflow state",
	Long: `Clean up local agent state:
  --journal     Delete finished (completed, denied, failed) runs from the journal
  --fsm-state   Remove the FSM state directory`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupJournal, "journal", false, "Delete finished runs from the journal")
	cleanupCmd.Flags().BoolVar(&cleanupFSMState, "fsm-state", false, "Remove the FSM state directory")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if !cleanupJournal && !cleanupFSMState {
		return fmt.Errorf("must specify --journal or --fsm-state")
	}

	if cleanupJournal {
		repo, err := db.NewRepository(cfg.SQLitePath)
		if err != nil {
			return errors.Wrap(err, "db init failed")
		}
		defer repo.Close()

		n, err := repo.DeleteFinished(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "journal cleanup failed")
		}
		fmt.Printf("Removed %d finished runs\n", n)
	}

	if cleanupFSMState {
		if err := os.RemoveAll(cfg.FSMDBPath); err != nil {
			return errors.Wrap(err, "failed to remove FSM state")
		}
		fmt.Printf("Removed FSM state: %s\n", cfg.FSMDBPath)
	}

	return nil
}
