// Package security decides whether a destructive action may run against a
// proposed target.
package security

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/securewipe/wipe-agent/pkg/inventory"
)

// Policy names accepted by NewPolicy.
const (
	PolicyAllowList = "allowlist"
	PolicyInventory = "inventory"
	PolicyStrict    = "strict"
)

// Policy is the allow predicate consulted by the Gate.
type Policy interface {
	Allows(ctx context.Context, target string) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, target string) bool

func (f PolicyFunc) Allows(ctx context.Context, target string) bool { return f(ctx, target) }

// AllowList permits exact matches of a fixed set of paths, compared after
// filepath.Clean.
type AllowList struct {
	paths map[string]struct{}
}

func NewAllowList(paths ...string) *AllowList {
	a := &AllowList{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		if p == "" {
			continue
		}
		a.paths[filepath.Clean(p)] = struct{}{}
	}
	return a
}

func (a *AllowList) Allows(_ context.Context, target string) bool {
	if target == "" {
		return false
	}
	_, ok := a.paths[filepath.Clean(target)]
	return ok
}

// InventoryPolicy permits only whole disks currently reported by the
// inventory. An inventory failure denies.
type InventoryPolicy struct {
	lister inventory.Lister
}

func NewInventoryPolicy(lister inventory.Lister) *InventoryPolicy {
	return &InventoryPolicy{lister: lister}
}

func (p *InventoryPolicy) Allows(ctx context.Context, target string) bool {
	if target == "" {
		return false
	}

	drives, err := p.lister.ListPhysicalDrives(ctx)
	if err != nil {
		slog.Warn("inventory_policy_unavailable", "target", target, "error", err)
		return false
	}

	_, ok := inventory.Find(drives, filepath.Clean(target))
	return ok
}

// All permits a target only when every policy does. An empty set denies.
func All(policies ...Policy) Policy {
	return PolicyFunc(func(ctx context.Context, target string) bool {
		if len(policies) == 0 {
			return false
		}
		for _, p := range policies {
			if !p.Allows(ctx, target) {
				return false
			}
		}
		return true
	})
}

// NewPolicy builds a named policy. strict requires both the allow-list and
// the inventory to agree.
func NewPolicy(name string, allowed []string, lister inventory.Lister) (Policy, error) {
	switch name {
	case PolicyAllowList, "":
		return NewAllowList(allowed...), nil
	case PolicyInventory:
		return NewInventoryPolicy(lister), nil
	case PolicyStrict:
		return All(NewAllowList(allowed...), NewInventoryPolicy(lister)), nil
	default:
		return nil, fmt.Errorf("unknown safety policy %q", name)
	}
}
