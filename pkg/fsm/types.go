package fsm

// RunRequest is the FSM input
type RunRequest struct {
	RunID     string `json:"run_id"`
	MachineID string `json:"machine_id"`
}

// RunResponse is the FSM output (accumulated across transitions)
type RunResponse struct {
	// From AwaitCommand
	RequestedTarget string `json:"requested_target,omitempty"`

	// From ResolveTarget
	ResolvedTarget string `json:"resolved_target,omitempty"`

	// Updated by every transition
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// State names
const (
	StateRegister      = "register"
	StateAwaitCommand  = "await_command"
	StateResolveTarget = "resolve_target"
	StateSafetyGate    = "safety_gate"
	StateExecute       = "execute"
	StateComplete      = "complete"
	StateFailed        = "failed"
)
