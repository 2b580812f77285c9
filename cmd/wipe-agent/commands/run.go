package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/securewipe/wipe-agent/pkg/agent"
	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
	appfsm "github.com/securewipe/wipe-agent/pkg/fsm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Register, wait for a wipe command and execute it",
	Long: `Registers this machine with the control plane and polls until a wipe command
arrives. The target passes through the safety gate before the wipe tool runs.
Exits non-zero when registration fails or the demo safe target is missing. A
target refused by the safety gate and a wipe that failed after being reported
to the control plane are normal exits.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fsmDBPath := ""
	if cfg.FSMEnabled {
		fsmDBPath = cfg.FSMDBPath
	}
	if err := ensureDirectories(cfg.SQLitePath, fsmDBPath); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	a, err := buildAgent(ctx, cfg, repo)
	if err != nil {
		return errors.Wrap(err, "agent init failed")
	}

	var run *db.WipeRun
	if cfg.FSMEnabled {
		run, err = appfsm.Execute(ctx, a, fsmDBPath)
	} else {
		run, err = a.Run(ctx)
	}

	printOutcome(cmd.OutOrStdout(), run)
	return exitError(run, err)
}

func printOutcome(w io.Writer, run *db.WipeRun) {
	if run == nil {
		return
	}
	target := run.ResolvedTarget
	if target == "" {
		target = "-"
	}
	fmt.Fprintf(w, "run %s: %s (target %s)\n", run.RunID, run.Status, target)
}

// exitError maps a finished run to the command's result. A failed wipe has
// already been reported and is a terminal outcome, not a process failure.
func exitError(run *db.WipeRun, err error) error {
	if err == nil {
		return nil
	}
	if agent.IsReported(err) {
		runID := ""
		if run != nil {
			runID = run.RunID
		}
		slog.Warn("agent_run_reported_failure", "run_id", runID, "error", err)
		return nil
	}
	slog.Error("agent_run_failed", "error", err)
	return err
}
