package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/securewipe/wipe-agent/internal/config"
	"github.com/securewipe/wipe-agent/pkg/agent"
	"github.com/securewipe/wipe-agent/pkg/controlplane"
	"github.com/securewipe/wipe-agent/pkg/db"
	"github.com/securewipe/wipe-agent/pkg/errors"
	"github.com/securewipe/wipe-agent/pkg/identity"
	"github.com/securewipe/wipe-agent/pkg/inventory"
	"github.com/securewipe/wipe-agent/pkg/security"
	"github.com/securewipe/wipe-agent/pkg/storage"
	"github.com/securewipe/wipe-agent/pkg/system"
	"github.com/securewipe/wipe-agent/pkg/wipe"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, fsmDBPath string) error {
	// Create database directory
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	// Create FSM state directory (only needed for run)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	return nil
}

// buildAgent wires the agent's collaborators from cfg
func buildAgent(ctx context.Context, cfg *config.Config, repo *db.Repository) (*agent.Agent, error) {
	provider := identity.NewProvider(cfg.MachineID)

	client := controlplane.NewClient(controlplane.Config{
		BaseURL:        cfg.ServerURL,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		DefaultTarget:  cfg.DefaultTarget,
	})
	reporter := agent.StampReports(client, provider)

	runner := system.NewExecRunner()
	lister := inventory.NewLister(runner, cfg.InventoryTool)

	policy, err := security.NewPolicy(cfg.SafetyPolicy, cfg.AllowedTargets, lister)
	if err != nil {
		return nil, err
	}

	deps := agent.Deps{
		Identity:  provider,
		Control:   client,
		Reporter:  reporter,
		Inventory: lister,
		Gate:      security.NewGate(policy, reporter),
		Executor:  wipe.NewExecutor(runner, cfg.WipeTool, cfg.WipePasses, reporter),
		Journal:   repo,
	}

	if cfg.EvidenceBucket != "" {
		s3Client, err := storage.NewClient(ctx, cfg.EvidenceBucket, cfg.EvidenceRegion, cfg.EvidencePrefix)
		if err != nil {
			return nil, errors.Wrap(err, "S3 client failed")
		}
		deps.Archiver = s3Client
	} else {
		slog.Info("evidence_archive_disabled")
	}

	return agent.New(agent.Config{
		DemoMode:       cfg.DemoMode,
		SafeTarget:     cfg.SafeTarget,
		ReportProgress: cfg.ReportProgress,
	}, deps), nil
}
