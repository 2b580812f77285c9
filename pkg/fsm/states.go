package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/superfly/fsm"

	"github.com/securewipe/wipe-agent/pkg/db"
)

// handleRegister announces the host to the control plane
func (m *Machine) handleRegister(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_register", "run_id", req.Msg.RunID)

	run, resp := m.load(req)
	if err := m.agent.Register(ctx, run); err != nil {
		return m.abort(ctx, run, err)
	}
	return m.save(run, resp), nil
}

// handleAwaitCommand blocks until the server issues a wipe command
func (m *Machine) handleAwaitCommand(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_await_command", "run_id", req.Msg.RunID)

	run, resp := m.load(req)
	if err := m.agent.AwaitCommand(ctx, run); err != nil {
		return m.abort(ctx, run, err)
	}
	return m.save(run, resp), nil
}

// handleResolveTarget maps the requested target to the path to gate
func (m *Machine) handleResolveTarget(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_resolve_target", "run_id", req.Msg.RunID)

	run, resp := m.load(req)
	if err := m.agent.ResolveTarget(ctx, run); err != nil {
		return m.abort(ctx, run, err)
	}
	return m.save(run, resp), nil
}

// handleSafetyGate consults the gate. A denial is recorded and the remaining
// transitions pass it through untouched.
func (m *Machine) handleSafetyGate(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_safety_gate", "run_id", req.Msg.RunID)

	run, resp := m.load(req)
	if !m.agent.Approve(ctx, run) {
		slog.Info("fsm_run_denied", "run_id", run.RunID, "target", run.ResolvedTarget)
	}
	return m.save(run, resp), nil
}

// handleExecute wipes the approved target. It refuses to run on a retry.
func (m *Machine) handleExecute(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_execute", "run_id", req.Msg.RunID)

	run, resp := m.load(req)
	if run.Status == db.StatusDenied {
		slog.Info("execute_skipped", "run_id", run.RunID, "reason", "denied")
		return m.save(run, resp), nil
	}

	if retryCount := fsm.RetryFromContext(ctx); retryCount > 0 {
		slog.Error("execute_retry_refused", "run_id", run.RunID, "retry", retryCount)
		return m.abort(ctx, run, fmt.Errorf("wipe already attempted for run %s", run.RunID))
	}

	if err := m.agent.Execute(ctx, run); err != nil {
		return m.abort(ctx, run, err)
	}
	return m.save(run, resp), nil
}

// handleComplete records the final state of a completed or denied run
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_complete", "run_id", req.Msg.RunID)

	run, resp := m.load(req)
	m.agent.Finish(ctx, run, nil)

	slog.Info("fsm_complete", "run_id", run.RunID, "status", run.Status)
	return m.save(run, resp), nil
}

// load rebuilds the run record from the request and accumulated response
func (m *Machine) load(req *fsm.Request[RunRequest, RunResponse]) (*db.WipeRun, *RunResponse) {
	resp := req.W.Msg
	if resp == nil {
		resp = &RunResponse{Status: db.StatusPending}
	}

	return &db.WipeRun{
		RunID:           req.Msg.RunID,
		MachineID:       req.Msg.MachineID,
		RequestedTarget: resp.RequestedTarget,
		ResolvedTarget:  resp.ResolvedTarget,
		Status:          resp.Status,
		ErrorMessage:    resp.ErrorMessage,
	}, resp
}

// save copies run back into resp and remembers it as the latest outcome
func (m *Machine) save(run *db.WipeRun, resp *RunResponse) *fsm.Response[RunResponse] {
	resp.RequestedTarget = run.RequestedTarget
	resp.ResolvedTarget = run.ResolvedTarget
	resp.Status = run.Status
	resp.ErrorMessage = run.ErrorMessage

	m.mu.Lock()
	snapshot := *run
	m.outcomes[run.RunID] = &snapshot
	m.mu.Unlock()

	return fsm.NewResponse(resp)
}

// abort finishes the run as failed and stops the machine without retry
func (m *Machine) abort(ctx context.Context, run *db.WipeRun, err error) (*fsm.Response[RunResponse], error) {
	slog.Error("fsm_state_failed", "run_id", run.RunID, "status", run.Status, "error", err)
	m.agent.Finish(ctx, run, err)

	m.mu.Lock()
	snapshot := *run
	m.outcomes[run.RunID] = &snapshot
	m.failures[run.RunID] = err
	m.mu.Unlock()

	return nil, fsm.Abort(err)
}

// outcome returns the latest known state of a run
func (m *Machine) outcome(runID string) *db.WipeRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[runID]
}

// failure returns the error that aborted a run, if any
func (m *Machine) failure(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[runID]
}
