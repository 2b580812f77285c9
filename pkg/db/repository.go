package db

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/securewipe/wipe-agent/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for wipe runs
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the journal at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("database_dir_create_failed", "db_path", dbPath, "error", err)
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveRun inserts the run or updates the existing row with the same run id
func (r *Repository) SaveRun(ctx context.Context, run *WipeRun) error {
	slog.Info("database_save_run", "run_id", run.RunID, "status", run.Status)

	query := `
		INSERT INTO wipe_runs (run_id, machine_id, requested_target, resolved_target, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
		    machine_id = excluded.machine_id,
		    requested_target = excluded.requested_target,
		    resolved_target = excluded.resolved_target,
		    status = excluded.status,
		    error_message = excluded.error_message,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		run.RunID, run.MachineID, run.RequestedTarget, run.ResolvedTarget, run.Status, run.ErrorMessage)
	if err != nil {
		slog.Error("database_save_run_failed", "run_id", run.RunID, "error", err)
		return errors.Wrap(err, "failed to save run")
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM wipe_runs WHERE run_id = ?`, run.RunID).Scan(&id); err != nil {
		slog.Error("database_run_id_lookup_failed", "run_id", run.RunID, "error", err)
		return errors.Wrap(err, "failed to read run id")
	}
	run.ID = id

	slog.Info("database_run_saved", "run_id", run.RunID, "row_id", run.ID, "status", run.Status)
	return nil
}

// GetByRunID retrieves a run; it returns nil, nil when none exists
func (r *Repository) GetByRunID(ctx context.Context, runID string) (*WipeRun, error) {
	query := `
		SELECT id, run_id, machine_id, requested_target, resolved_target, status, error_message, created_at, updated_at
		FROM wipe_runs WHERE run_id = ?
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		slog.Info("database_run_not_found", "run_id", runID)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "run_id", runID, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}
	return run, nil
}

// List retrieves the most recent runs, newest first. limit <= 0 means all.
func (r *Repository) List(ctx context.Context, limit int) ([]*WipeRun, error) {
	slog.Info("database_list_runs", "limit", limit)

	query := `
		SELECT id, run_id, machine_id, requested_target, resolved_target, status, error_message, created_at, updated_at
		FROM wipe_runs ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*WipeRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "run_count", len(runs))
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*WipeRun, error) {
	var run WipeRun
	var requested, resolved, errorMessage sql.NullString

	err := s.Scan(
		&run.ID, &run.RunID, &run.MachineID,
		&requested, &resolved, &run.Status, &errorMessage,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	run.RequestedTarget = requested.String
	run.ResolvedTarget = resolved.String
	run.ErrorMessage = errorMessage.String
	return &run, nil
}

// DeleteFinished removes every run in a terminal state and returns the count
func (r *Repository) DeleteFinished(ctx context.Context) (int64, error) {
	slog.Info("database_delete_finished_runs")

	query := `DELETE FROM wipe_runs WHERE status IN (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, StatusCompleted, StatusDenied, StatusFailed)
	if err != nil {
		slog.Error("database_delete_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete finished runs")
	}

	n, err := result.RowsAffected()
	if err != nil {
		slog.Error("database_rows_affected_failed", "error", err)
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("database_finished_runs_deleted", "run_count", n)
	return n, nil
}
