package db

// Schema defines the SQLite schema for the local wipe journal.
// Each agent run is one row keyed by its run id and updated in place as the
// run advances.
const Schema = `
CREATE TABLE IF NOT EXISTS wipe_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    machine_id TEXT NOT NULL,
    requested_target TEXT,
    resolved_target TEXT,
    status TEXT NOT NULL CHECK(status IN ('pending', 'registered', 'command_received', 'denied', 'completed', 'failed')),
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_wipe_runs_machine_id ON wipe_runs(machine_id);
CREATE INDEX IF NOT EXISTS idx_wipe_runs_status ON wipe_runs(status);
CREATE INDEX IF NOT EXISTS idx_wipe_runs_created_at ON wipe_runs(created_at);
`

// Status constants
const (
	StatusPending         = "pending"
	StatusRegistered      = "registered"
	StatusCommandReceived = "command_received"
	StatusDenied          = "denied"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
)

// WipeRun represents one agent run
type WipeRun struct {
	ID              int64  `json:"-"`
	RunID           string `json:"run_id"`
	MachineID       string `json:"machine_id"`
	RequestedTarget string `json:"requested_target,omitempty"`
	ResolvedTarget  string `json:"resolved_target,omitempty"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// Terminal reports whether the run can no longer change.
func (r *WipeRun) Terminal() bool {
	switch r.Status {
	case StatusDenied, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
