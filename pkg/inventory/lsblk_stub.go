//go:build !linux

package inventory

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/securewipe/wipe-agent/pkg/system"
)

// StubLister reports that no inventory facility exists on this platform.
type StubLister struct{}

// NewLister returns a stub on non-Linux systems.
func NewLister(runner system.Runner, tool string) Lister {
	return &StubLister{}
}

func (l *StubLister) ListPhysicalDrives(ctx context.Context) ([]PhysicalDrive, error) {
	slog.Warn("inventory_unsupported", "os", runtime.GOOS)
	return nil, ErrUnsupportedPlatform
}
