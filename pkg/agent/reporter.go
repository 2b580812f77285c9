package agent

import (
	"context"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
)

type stampingReporter struct {
	next     Reporter
	identity Identity
}

// StampReports returns a Reporter that fills in the machine id on every
// report before passing it to next.
func StampReports(next Reporter, identity Identity) Reporter {
	return &stampingReporter{next: next, identity: identity}
}

func (r *stampingReporter) ReportStatus(ctx context.Context, report controlplane.StatusReport) {
	if report.MachineID == "" {
		report.MachineID = r.identity.MachineID()
	}
	r.next.ReportStatus(ctx, report)
}
