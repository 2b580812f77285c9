package controlplane

// CommandKind is the instruction carried by a status poll.
type CommandKind string

const (
	CommandNone CommandKind = "none"
	CommandWipe CommandKind = "wipe"
)

// Command is the decoded result of one poll. Target is set only for wipes.
type Command struct {
	Kind   CommandKind
	Target string
}

// Status values understood by the control plane.
const (
	StatusRegistered = "registered"
	StatusPolling    = "polling"
	StatusError      = "error"
	StatusCompleted  = "completed"
)

// Messages the control plane keys on.
const (
	MessageSafetyLock  = "Safety Lock Enabled"
	MessageWipeFailed  = "Shred command failed"
	MessageWaitCommand = "Waiting for command"
)

// StatusReport is the body of POST /agent/report_status.
type StatusReport struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Drive     string `json:"drive,omitempty"`
	MachineID string `json:"machine_id,omitempty"`
}

// RegisterRequest is the body of POST /agent/register.
type RegisterRequest struct {
	MachineID string `json:"machine_id"`
}

// StatusResponse is the body of GET /agent/{machine_id}/status.
type StatusResponse struct {
	Command     string `json:"command"`
	TargetDrive string `json:"target_drive,omitempty"`
}
