// Package wipe runs the secure-delete tool against an approved target.
package wipe

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
	"github.com/securewipe/wipe-agent/pkg/errors"
	"github.com/securewipe/wipe-agent/pkg/system"
)

// ErrWipeFailed marks a failed or impossible wipe. It is terminal.
var ErrWipeFailed = errors.New("wipe failed")

const (
	DefaultTool   = "shred"
	DefaultPasses = 1
)

// Reporter receives status reports.
type Reporter interface {
	ReportStatus(ctx context.Context, report controlplane.StatusReport)
}

// Executor invokes the wipe tool. It makes no trust decisions: callers must
// only pass targets the safety gate approved.
type Executor struct {
	runner   system.Runner
	tool     string
	passes   int
	reporter Reporter
}

func NewExecutor(runner system.Runner, tool string, passes int, reporter Reporter) *Executor {
	if tool == "" {
		tool = DefaultTool
	}
	if passes < 1 {
		passes = DefaultPasses
	}
	return &Executor{runner: runner, tool: tool, passes: passes, reporter: reporter}
}

// Args returns the tool arguments used for target: verbose, the configured
// number of overwrite passes, then unlink.
func (e *Executor) Args(target string) []string {
	return []string{"-v", "-n", strconv.Itoa(e.passes), "-u", target}
}

// Execute runs the wipe to completion and sends exactly one terminal report.
// There is no timeout and no retry.
func (e *Executor) Execute(ctx context.Context, target string) error {
	slog.Info("wipe_start", "target", target, "tool", e.tool, "passes", e.passes)
	start := time.Now()

	err := e.runner.Run(ctx, e.tool, e.Args(target)...)
	// The outcome is reported even when ctx was cancelled mid-wipe.
	reportCtx := context.WithoutCancel(ctx)
	if err != nil {
		reason := "tool_failed"
		if errors.Is(err, exec.ErrNotFound) {
			reason = "tool_missing"
		}
		slog.Error("wipe_failed", "target", target, "reason", reason, "duration", time.Since(start), "error", err)

		e.reporter.ReportStatus(reportCtx, controlplane.StatusReport{
			Status:  controlplane.StatusError,
			Message: controlplane.MessageWipeFailed,
		})
		return errors.Mark(errors.Wrapf(err, "%s %s", e.tool, target), ErrWipeFailed)
	}

	slog.Info("wipe_complete", "target", target, "duration", time.Since(start))
	e.reporter.ReportStatus(reportCtx, controlplane.StatusReport{
		Status: controlplane.StatusCompleted,
		Drive:  target,
	})
	return nil
}
