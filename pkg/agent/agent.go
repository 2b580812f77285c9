// Package agent sequences a single wipe run: identify, register, wait for a
// command, resolve and gate the target, execute, record.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
	"github.com/securewipe/wipe-agent/pkg/inventory"
	"github.com/securewipe/wipe-agent/pkg/wipe"
)

// ErrSafeTargetMissing means demo mode is on but the safe test file is absent.
var ErrSafeTargetMissing = errors.New("safe test target not found")

// SafeTargetHint tells the operator how to create the default safe target.
const SafeTargetHint = "echo This is the main Document file > dummy_disk.txt"

type Identity interface {
	MachineID() string
}

// ControlPlane is the registration and command side of the control channel.
type ControlPlane interface {
	Register(ctx context.Context, machineID string) error
	AwaitWipeCommand(ctx context.Context, machineID string) (string, error)
}

type Reporter interface {
	ReportStatus(ctx context.Context, report controlplane.StatusReport)
}

type Gate interface {
	Approve(ctx context.Context, target string) bool
}

type Executor interface {
	Execute(ctx context.Context, target string) error
}

// Journal records run progress locally.
type Journal interface {
	SaveRun(ctx context.Context, run *db.WipeRun) error
}

// Archiver ships the final run record off the host.
type Archiver interface {
	ArchiveRun(ctx context.Context, run *db.WipeRun) (string, error)
}

// Config selects the operational mode.
type Config struct {
	// DemoMode replaces every server-supplied target with SafeTarget.
	DemoMode   bool
	SafeTarget string
	// ReportProgress sends registered and polling reports.
	ReportProgress bool
}

// Deps are the collaborators of an Agent. Journal and Archiver are optional.
type Deps struct {
	Identity  Identity
	Control   ControlPlane
	Reporter  Reporter
	Inventory inventory.Lister
	Gate      Gate
	Executor  Executor
	Journal   Journal
	Archiver  Archiver
}

type Agent struct {
	cfg  Config
	deps Deps
	stat func(string) (os.FileInfo, error)
}

func New(cfg Config, deps Deps) *Agent {
	return &Agent{cfg: cfg, deps: deps, stat: os.Stat}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRun starts a run record for this host.
func (a *Agent) NewRun() *db.WipeRun {
	return &db.WipeRun{
		RunID:     NewRunID(),
		MachineID: a.deps.Identity.MachineID(),
		Status:    db.StatusPending,
	}
}

// Begin starts a run record for this host and journals it as pending.
func (a *Agent) Begin(ctx context.Context) *db.WipeRun {
	run := a.NewRun()
	slog.Info("agent_run_start", "run_id", run.RunID, "machine_id", run.MachineID, "demo_mode", a.cfg.DemoMode)
	a.record(ctx, run)
	return run
}

// Run executes the whole sequence once. A denial is a normal outcome and
// returns a nil error. Registration failure, a missing safe target and a
// failed wipe return an error; IsReported tells which of them the control
// plane already knows about.
func (a *Agent) Run(ctx context.Context) (*db.WipeRun, error) {
	run := a.Begin(ctx)

	err := a.run(ctx, run)
	a.Finish(ctx, run, err)
	return run, err
}

func (a *Agent) run(ctx context.Context, run *db.WipeRun) error {
	if err := a.Register(ctx, run); err != nil {
		return err
	}
	if err := a.AwaitCommand(ctx, run); err != nil {
		return err
	}
	if err := a.ResolveTarget(ctx, run); err != nil {
		return err
	}
	if !a.Approve(ctx, run) {
		return nil
	}
	return a.Execute(ctx, run)
}

// Register announces the host. Failure is fatal for the run.
func (a *Agent) Register(ctx context.Context, run *db.WipeRun) error {
	if err := a.deps.Control.Register(ctx, run.MachineID); err != nil {
		return err
	}

	run.Status = db.StatusRegistered
	a.record(ctx, run)
	if a.cfg.ReportProgress {
		a.deps.Reporter.ReportStatus(ctx, controlplane.StatusReport{Status: controlplane.StatusRegistered})
	}
	return nil
}

// AwaitCommand blocks until a wipe command arrives or ctx ends.
func (a *Agent) AwaitCommand(ctx context.Context, run *db.WipeRun) error {
	if a.cfg.ReportProgress {
		a.deps.Reporter.ReportStatus(ctx, controlplane.StatusReport{
			Status:  controlplane.StatusPolling,
			Message: controlplane.MessageWaitCommand,
		})
	}

	target, err := a.deps.Control.AwaitWipeCommand(ctx, run.MachineID)
	if err != nil {
		return errors.Wrap(err, "waiting for command")
	}

	run.RequestedTarget = target
	run.Status = db.StatusCommandReceived
	a.record(ctx, run)
	return nil
}

// ResolveTarget turns the requested target into the path handed to the gate.
// The inventory is informational: a failure to list drives is logged and the
// requested target is used literally.
func (a *Agent) ResolveTarget(ctx context.Context, run *db.WipeRun) error {
	target := run.RequestedTarget

	drives, err := a.deps.Inventory.ListPhysicalDrives(ctx)
	if err != nil {
		slog.Warn("inventory_unavailable", "run_id", run.RunID, "error", err)
		drives = nil
	}
	for _, d := range drives {
		slog.Info("physical_drive", "name", d.Name, "path", d.Path, "size_bytes", d.SizeBytes, "model", d.Model)
	}
	if d, ok := inventory.Find(drives, target); ok && d.Path != target {
		slog.Info("target_resolved_from_inventory", "requested", target, "path", d.Path)
		target = d.Path
	}

	if a.cfg.DemoMode {
		slog.Warn("demo_mode_override", "requested", target, "safe_target", a.cfg.SafeTarget)
		if _, err := a.stat(a.cfg.SafeTarget); err != nil {
			slog.Error("safe_target_missing", "safe_target", a.cfg.SafeTarget, "error", err)
			fmt.Fprintf(os.Stderr, "FATAL: Test file '%s' not found.\nPlease create it by running: %s\n", a.cfg.SafeTarget, SafeTargetHint)
			return errors.Mark(errors.Wrap(err, a.cfg.SafeTarget), ErrSafeTargetMissing)
		}
		target = a.cfg.SafeTarget
	}

	run.ResolvedTarget = target
	a.record(ctx, run)
	slog.Info("target_resolved", "run_id", run.RunID, "target", target)
	return nil
}

// Approve consults the safety gate. A denial marks the run denied; the gate
// has already reported it.
func (a *Agent) Approve(ctx context.Context, run *db.WipeRun) bool {
	if a.deps.Gate.Approve(ctx, run.ResolvedTarget) {
		return true
	}
	run.Status = db.StatusDenied
	run.ErrorMessage = controlplane.MessageSafetyLock
	return false
}

// Execute wipes the approved target once. The executor reports the outcome.
func (a *Agent) Execute(ctx context.Context, run *db.WipeRun) error {
	if err := a.deps.Executor.Execute(ctx, run.ResolvedTarget); err != nil {
		return err
	}
	run.Status = db.StatusCompleted
	return nil
}

// Finish records the final state of run, marking it failed when err is set.
func (a *Agent) Finish(ctx context.Context, run *db.WipeRun, err error) {
	if err != nil && !run.Terminal() {
		run.Status = db.StatusFailed
		run.ErrorMessage = err.Error()
	}

	// The run context may already be cancelled; the record must still land.
	ctx = context.WithoutCancel(ctx)
	a.record(ctx, run)

	if a.deps.Archiver != nil {
		if key, aerr := a.deps.Archiver.ArchiveRun(ctx, run); aerr != nil {
			slog.Warn("run_archive_failed", "run_id", run.RunID, "error", aerr)
		} else {
			slog.Info("run_archived", "run_id", run.RunID, "s3_key", key)
		}
	}

	slog.Info("agent_run_finished", "run_id", run.RunID, "status", run.Status, "target", run.ResolvedTarget)
}

// IsReported reports whether err ended a run that the control plane was
// already told about. Such a run finished its sequence normally.
func IsReported(err error) bool {
	return errors.Is(err, wipe.ErrWipeFailed)
}

func (a *Agent) record(ctx context.Context, run *db.WipeRun) {
	if a.deps.Journal == nil {
		return
	}
	if err := a.deps.Journal.SaveRun(ctx, run); err != nil {
		slog.Warn("journal_write_failed", "run_id", run.RunID, "status", run.Status, "error", err)
	}
}
