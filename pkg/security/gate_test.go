package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securewipe/wipe-agent/pkg/controlplane"
	"github.com/securewipe/wipe-agent/pkg/controlplane/controlplanetest"
	"github.com/securewipe/wipe-agent/pkg/inventory"
)

type staticLister struct {
	drives []inventory.PhysicalDrive
	err    error
	calls  int
}

func (s *staticLister) ListPhysicalDrives(context.Context) ([]inventory.PhysicalDrive, error) {
	s.calls++
	return s.drives, s.err
}

func TestGate_Approve(t *testing.T) {
	rec := &controlplanetest.Recorder{}
	gate := NewGate(NewAllowList("dummy_disk.txt"), rec)

	assert.True(t, gate.Approve(context.Background(), "dummy_disk.txt"))
	assert.True(t, gate.Approve(context.Background(), "./dummy_disk.txt"))
	assert.Empty(t, rec.Reports())
}

func TestGate_DenyReportsOnce(t *testing.T) {
	rec := &controlplanetest.Recorder{}
	gate := NewGate(NewAllowList("dummy_disk.txt"), rec)

	assert.False(t, gate.Approve(context.Background(), "/dev/sda"))

	reports := rec.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, controlplane.StatusError, reports[0].Status)
	assert.Equal(t, controlplane.MessageSafetyLock, reports[0].Message)
	assert.Empty(t, reports[0].Drive)
}

func TestGate_RepeatedDenialsAreIndependent(t *testing.T) {
	rec := &controlplanetest.Recorder{}
	gate := NewGate(NewAllowList("dummy_disk.txt"), rec)

	for i := 1; i <= 3; i++ {
		assert.False(t, gate.Approve(context.Background(), "/dev/sda"))
		assert.Len(t, rec.Reports(), i)
	}

	assert.True(t, gate.Approve(context.Background(), "dummy_disk.txt"))
	assert.Len(t, rec.Reports(), 3)
}

func TestGate_NoSubstringMatch(t *testing.T) {
	rec := &controlplanetest.Recorder{}
	gate := NewGate(NewAllowList("dummy_disk.txt"), rec)

	for _, target := range []string{"/tmp/dummy_disk.txt", "dummy_disk.txt.bak", "/dev/sda dummy_disk.txt"} {
		assert.False(t, gate.Approve(context.Background(), target), target)
	}
	assert.Len(t, rec.WithStatus(controlplane.StatusError), 3)
}

func TestGate_UnsafeTargetDeniedBeforePolicy(t *testing.T) {
	rec := &controlplanetest.Recorder{}
	consulted := false
	gate := NewGate(PolicyFunc(func(context.Context, string) bool {
		consulted = true
		return true
	}), rec)

	assert.False(t, gate.Approve(context.Background(), "--remove"))
	assert.False(t, consulted)
	assert.Len(t, rec.Reports(), 1)
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		target    string
		shouldErr bool
	}{
		{"dummy_disk.txt", false},
		{"/dev/sda", false},
		{"dir/../dummy_disk.txt", false},
		{"", true},
		{"   ", true},
		{"-n", true},
		{"../etc/passwd", true},
		{"..", true},
		{"/dev/sda\n/dev/sdb", true},
	}

	for _, tt := range tests {
		err := ValidateTarget(tt.target)
		if tt.shouldErr {
			assert.Error(t, err, "target %q", tt.target)
		} else {
			assert.NoError(t, err, "target %q", tt.target)
		}
	}
}

func TestInventoryPolicy(t *testing.T) {
	lister := &staticLister{drives: []inventory.PhysicalDrive{
		{Name: "sdb", Path: "/dev/sdb", Type: inventory.TypeDisk},
	}}
	p := NewInventoryPolicy(lister)

	assert.True(t, p.Allows(context.Background(), "/dev/sdb"))
	assert.True(t, p.Allows(context.Background(), "sdb"))
	assert.False(t, p.Allows(context.Background(), "/dev/sdb1"))
	assert.False(t, p.Allows(context.Background(), ""))
}

func TestInventoryPolicy_ListerFailureDenies(t *testing.T) {
	p := NewInventoryPolicy(&staticLister{err: inventory.ErrToolMissing})
	assert.False(t, p.Allows(context.Background(), "/dev/sda"))
}

func TestNewPolicy(t *testing.T) {
	lister := &staticLister{drives: []inventory.PhysicalDrive{
		{Name: "sdb", Path: "/dev/sdb", Type: inventory.TypeDisk},
	}}

	allow, err := NewPolicy(PolicyAllowList, []string{"dummy_disk.txt"}, lister)
	require.NoError(t, err)
	assert.True(t, allow.Allows(context.Background(), "dummy_disk.txt"))
	assert.False(t, allow.Allows(context.Background(), "/dev/sdb"))

	inv, err := NewPolicy(PolicyInventory, nil, lister)
	require.NoError(t, err)
	assert.True(t, inv.Allows(context.Background(), "/dev/sdb"))

	strict, err := NewPolicy(PolicyStrict, []string{"/dev/sdb", "dummy_disk.txt"}, lister)
	require.NoError(t, err)
	assert.True(t, strict.Allows(context.Background(), "/dev/sdb"))
	assert.False(t, strict.Allows(context.Background(), "dummy_disk.txt"))

	_, err = NewPolicy("permissive", nil, lister)
	assert.Error(t, err)
}

func TestAll_EmptyDenies(t *testing.T) {
	assert.False(t, All().Allows(context.Background(), "dummy_disk.txt"))
}

func TestGate_DenialReportedOnCancelledContext(t *testing.T) {
	srv := controlplanetest.NewServer()
	defer srv.Close()
	gate := NewGate(NewAllowList("dummy_disk.txt"), controlplane.NewClient(controlplane.Config{BaseURL: srv.URL}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, gate.Approve(ctx, "/dev/sda"))
	reports := srv.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, controlplane.MessageSafetyLock, reports[0].Message)
}
