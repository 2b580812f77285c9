//go:build linux

package inventory

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/securewipe/wipe-agent/pkg/errors"
	"github.com/securewipe/wipe-agent/pkg/system"
)

// LsblkLister lists drives by running lsblk.
type LsblkLister struct {
	runner system.Runner
	tool   string
}

// NewLister returns the platform lister. An empty tool means DefaultTool.
func NewLister(runner system.Runner, tool string) Lister {
	if tool == "" {
		tool = DefaultTool
	}
	return &LsblkLister{runner: runner, tool: tool}
}

func (l *LsblkLister) ListPhysicalDrives(ctx context.Context) ([]PhysicalDrive, error) {
	slog.Info("inventory_list_start", "tool", l.tool)

	out, err := l.runner.Output(ctx, l.tool, "-J", "-b", "-o", "NAME,TYPE,SIZE,MODEL")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			slog.Warn("inventory_tool_missing", "tool", l.tool)
			return nil, errors.Mark(err, ErrToolMissing)
		}
		slog.Warn("inventory_tool_failed", "tool", l.tool, "error", err)
		return nil, errors.Wrapf(err, "%s failed", l.tool)
	}

	drives, err := ParseLsblk(out)
	if err != nil {
		slog.Warn("inventory_parse_failed", "tool", l.tool, "error", err)
		return nil, err
	}

	slog.Info("inventory_list_complete", "drive_count", len(drives))
	return drives, nil
}
