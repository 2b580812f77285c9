package security

import (
	"context"
	"log/slog"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
)

// Reporter receives status reports.
type Reporter interface {
	ReportStatus(ctx context.Context, report controlplane.StatusReport)
}

// Gate guards the wipe executor. It keeps no state between evaluations.
type Gate struct {
	policy   Policy
	reporter Reporter
}

func NewGate(policy Policy, reporter Reporter) *Gate {
	return &Gate{policy: policy, reporter: reporter}
}

// Approve reports whether target may be wiped. A denial sends exactly one
// safety-lock error report before returning false. Approval has no side effect.
func (g *Gate) Approve(ctx context.Context, target string) bool {
	if err := ValidateTarget(target); err == nil && g.policy.Allows(ctx, target) {
		slog.Info("safety_gate_approved", "target", target)
		return true
	}

	slog.Warn("safety_lock_engaged", "target", target)
	g.reporter.ReportStatus(context.WithoutCancel(ctx), controlplane.StatusReport{
		Status:  controlplane.StatusError,
		Message: controlplane.MessageSafetyLock,
	})
	return false
}
