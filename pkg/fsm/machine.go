// Package fsm runs a wipe as a durable state machine on top of the
// superfly/fsm library. Every transition delegates to the agent's step of
// the same name; a failing step aborts the machine, so no step is retried and
// the wipe runs at most once.
package fsm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/superfly/fsm"

	"github.com/securewipe/wipe-agent/pkg/agent"
	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
)

// Name is the registered FSM action name.
const Name = "wipe-run"

// Machine holds dependencies for FSM transitions
type Machine struct {
	agent *agent.Agent

	mu       sync.Mutex
	outcomes map[string]*db.WipeRun
	failures map[string]error
}

// NewMachine creates a new FSM machine driving a
func NewMachine(a *agent.Agent) *Machine {
	return &Machine{
		agent:    a,
		outcomes: make(map[string]*db.WipeRun),
		failures: make(map[string]error),
	}
}

// Register registers the wipe-run FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[RunRequest, RunResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[RunRequest, RunResponse](manager, Name).
		Start(StateRegister, m.handleRegister).
		To(StateAwaitCommand, m.handleAwaitCommand).
		To(StateResolveTarget, m.handleResolveTarget).
		To(StateSafetyGate, m.handleSafetyGate).
		To(StateExecute, m.handleExecute).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

// Execute runs one wipe through a manager whose state lives under dbPath and
// returns the final run record. When a step aborts the machine, the step's own
// error is returned so callers can match it with errors.Is.
func Execute(ctx context.Context, a *agent.Agent, dbPath string) (*db.WipeRun, error) {
	manager, err := fsm.New(fsm.Config{DBPath: dbPath})
	if err != nil {
		return nil, errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := NewMachine(a)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return nil, err
	}

	run := a.Begin(ctx)
	req := &RunRequest{RunID: run.RunID, MachineID: run.MachineID}
	resp := &RunResponse{Status: run.Status}

	version, err := start(ctx, run.RunID, fsm.NewRequest(req, resp))
	if err != nil {
		return nil, errors.Wrap(err, "FSM start failed")
	}
	slog.Info("fsm_started", "run_id", run.RunID, "version", version)

	werr := manager.Wait(ctx, version)
	if cause := machine.failure(run.RunID); cause != nil {
		return machine.outcome(run.RunID), cause
	}
	if werr != nil {
		return machine.outcome(run.RunID), errors.Wrap(werr, "wipe run failed")
	}
	return machine.outcome(run.RunID), nil
}
