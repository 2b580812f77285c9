package fsm

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superfly/fsm"

	"github.com/securewipe/wipe-agent/pkg/agent"
	"github.com/securewipe/wipe-agent/pkg/controlplane"
	"github.com/securewipe/wipe-agent/pkg/controlplane/controlplanetest"
	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/inventory"
	"github.com/securewipe/wipe-agent/pkg/security"
	"github.com/securewipe/wipe-agent/pkg/system"
	"github.com/securewipe/wipe-agent/pkg/wipe"
)

type staticIdentity string

func (s staticIdentity) MachineID() string { return string(s) }

// journal records the status sequence on top of the sqlite repository.
type journal struct {
	*db.Repository

	mu       sync.Mutex
	statuses []string
}

func (j *journal) SaveRun(ctx context.Context, run *db.WipeRun) error {
	j.mu.Lock()
	j.statuses = append(j.statuses, run.Status)
	j.mu.Unlock()
	return j.Repository.SaveRun(ctx, run)
}

func (j *journal) Statuses() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.statuses...)
}

type fixture struct {
	srv     *controlplanetest.Server
	runner  *system.FakeRunner
	repo    *db.Repository
	journal *journal
	agent   *agent.Agent
}

func newFixture(t *testing.T, allowed ...string) *fixture {
	t.Helper()

	srv := controlplanetest.NewServer()
	t.Cleanup(srv.Close)

	repo, err := db.NewRepository(filepath.Join(t.TempDir(), "wipe-agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	id := staticIdentity("3c:22:fb:00:11:22")
	client := controlplane.NewClient(controlplane.Config{BaseURL: srv.URL, PollInterval: time.Second},
		controlplane.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	reporter := agent.StampReports(client, id)
	runner := system.NewFakeRunner()
	j := &journal{Repository: repo}

	a := agent.New(agent.Config{}, agent.Deps{
		Identity:  id,
		Control:   client,
		Reporter:  reporter,
		Inventory: inventory.NewLister(runner, "lsblk"),
		Gate:      security.NewGate(security.NewAllowList(allowed...), reporter),
		Executor:  wipe.NewExecutor(runner, "shred", 1, reporter),
		Journal:   j,
	})
	return &fixture{srv: srv, runner: runner, repo: repo, journal: j, agent: a}
}

func request(runID string, resp *RunResponse) *fsm.Request[RunRequest, RunResponse] {
	return fsm.NewRequest(&RunRequest{RunID: runID, MachineID: "3c:22:fb:00:11:22"}, resp)
}

func TestHandleRegister(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	m := NewMachine(f.agent)

	out, err := m.handleRegister(context.Background(), request("run-1", &RunResponse{Status: db.StatusPending}))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, db.StatusRegistered, m.outcome("run-1").Status)
	assert.Len(t, f.srv.Registrations(), 1)
}

func TestHandleRegister_FailureAborts(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	f.srv.SetRegisterStatus(http.StatusForbidden)
	m := NewMachine(f.agent)

	_, err := m.handleRegister(context.Background(), request("run-2", &RunResponse{Status: db.StatusPending}))
	require.Error(t, err)
	assert.Equal(t, db.StatusFailed, m.outcome("run-2").Status)
	assert.Empty(t, f.srv.Polls())

	stored, err := f.repo.GetByRunID(context.Background(), "run-2")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusFailed, stored.Status)
}

func TestHandleSafetyGate_DenialSkipsExecute(t *testing.T) {
	f := newFixture(t, "dummy_disk.txt")
	f.runner.Script("shred", system.Result{})
	m := NewMachine(f.agent)

	resp := &RunResponse{
		RequestedTarget: "/dev/sda",
		ResolvedTarget:  "/dev/sda",
		Status:          db.StatusCommandReceived,
	}
	_, err := m.handleSafetyGate(context.Background(), request("run-3", resp))
	require.NoError(t, err)
	assert.Equal(t, db.StatusDenied, resp.Status)

	_, err = m.handleExecute(context.Background(), request("run-3", resp))
	require.NoError(t, err)
	assert.Zero(t, f.runner.CallCount("shred"))

	_, err = m.handleComplete(context.Background(), request("run-3", resp))
	require.NoError(t, err)

	reports := f.srv.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, controlplane.MessageSafetyLock, reports[0].Message)

	stored, _ := f.repo.GetByRunID(context.Background(), "run-3")
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusDenied, stored.Status)
}

func TestHandleResolveTarget(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	m := NewMachine(f.agent)

	resp := &RunResponse{RequestedTarget: "/dev/sdb", Status: db.StatusCommandReceived}
	_, err := m.handleResolveTarget(context.Background(), request("run-4", resp))
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb", resp.ResolvedTarget)
}

func TestExecute_EndToEnd(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	f.srv.ScriptPolls(controlplanetest.Noop(), controlplanetest.Wipe("/dev/sdb"))
	f.runner.Script("shred", system.Result{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run, err := Execute(ctx, f.agent, filepath.Join(t.TempDir(), "fsm"))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, db.StatusCompleted, run.Status)
	assert.Equal(t, 1, f.runner.CallCount("shred"))
	assert.Len(t, f.srv.ReportsWithStatus(controlplane.StatusCompleted), 1)

	stored, err := f.repo.GetByRunID(context.Background(), run.RunID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusCompleted, stored.Status)
}

func executeFixture(t *testing.T, f *fixture) (*db.WipeRun, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return Execute(ctx, f.agent, filepath.Join(t.TempDir(), "fsm"))
}

func TestExecute_JournalsPendingFirst(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	f.srv.ScriptPolls(controlplanetest.Wipe("/dev/sdb"))
	f.runner.Script("shred", system.Result{})

	_, err := executeFixture(t, f)
	require.NoError(t, err)

	statuses := f.journal.Statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, db.StatusPending, statuses[0])
	assert.Equal(t, db.StatusCompleted, statuses[len(statuses)-1])
}

func TestExecute_RegistrationFailure(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	f.srv.SetRegisterStatus(http.StatusInternalServerError)
	f.runner.Script("shred", system.Result{})

	run, err := executeFixture(t, f)
	require.ErrorIs(t, err, controlplane.ErrRegistration)
	require.NotNil(t, run)
	assert.Equal(t, db.StatusFailed, run.Status)

	assert.Empty(t, f.srv.Polls())
	assert.Empty(t, f.srv.Reports())
	assert.Zero(t, f.runner.CallCount("shred"))
	assert.Equal(t, []string{db.StatusPending, db.StatusFailed}, f.journal.Statuses())

	stored, err := f.repo.GetByRunID(context.Background(), run.RunID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusFailed, stored.Status)
}

func TestExecute_Denial(t *testing.T) {
	f := newFixture(t, "dummy_disk.txt")
	f.srv.ScriptPolls(controlplanetest.Wipe("/dev/sda"))
	f.runner.Script("shred", system.Result{})

	run, err := executeFixture(t, f)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, db.StatusDenied, run.Status)
	assert.Equal(t, "/dev/sda", run.ResolvedTarget)
	assert.Zero(t, f.runner.CallCount("shred"))

	reports := f.srv.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, controlplane.MessageSafetyLock, reports[0].Message)
}

func TestExecute_WipeFailure(t *testing.T) {
	f := newFixture(t, "/dev/sdb")
	f.srv.ScriptPolls(controlplanetest.Wipe("/dev/sdb"))
	f.runner.Script("shred", system.Result{Err: system.ErrExitStatus})

	run, err := executeFixture(t, f)
	require.ErrorIs(t, err, wipe.ErrWipeFailed)
	assert.True(t, agent.IsReported(err))
	require.NotNil(t, run)
	assert.Equal(t, db.StatusFailed, run.Status)
	assert.Equal(t, 1, f.runner.CallCount("shred"))

	reports := f.srv.ReportsWithStatus(controlplane.StatusError)
	require.Len(t, reports, 1)
	assert.Equal(t, controlplane.MessageWipeFailed, reports[0].Message)
	assert.Empty(t, f.srv.ReportsWithStatus(controlplane.StatusCompleted))

	stored, _ := f.repo.GetByRunID(context.Background(), run.RunID)
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusFailed, stored.Status)
}
