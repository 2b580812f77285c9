package controlplanetest

import (
	"context"
	"sync"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
)

// Recorder is an in-memory status reporter.
type Recorder struct {
	mu      sync.Mutex
	reports []controlplane.StatusReport
}

func (r *Recorder) ReportStatus(_ context.Context, report controlplane.StatusReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) Reports() []controlplane.StatusReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]controlplane.StatusReport(nil), r.reports...)
}

// WithStatus returns the recorded reports carrying status.
func (r *Recorder) WithStatus(status string) []controlplane.StatusReport {
	var out []controlplane.StatusReport
	for _, rep := range r.Reports() {
		if rep.Status == status {
			out = append(out, rep)
		}
	}
	return out
}
