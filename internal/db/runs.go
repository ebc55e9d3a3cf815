package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-agent/internal/types"
)

const runColumns = `id, status, resume_id, total_jobs, processed_jobs, submitted_jobs,
	failed_jobs, skipped_jobs, min_score, safe_mode, require_confirmation, max_retries,
	constraints, error_message, created_at, started_at, finished_at`

func scanRun(row pgx.Row) (*types.AutonomousRun, error) {
	r := &types.AutonomousRun{}
	var status string
	var constraints []byte
	var errMsg *string
	err := row.Scan(&r.ID, &status, &r.ResumeID, &r.TotalJobs, &r.ProcessedJobs, &r.SubmittedJobs,
		&r.FailedJobs, &r.SkippedJobs, &r.MinScore, &r.SafeMode, &r.RequireConfirmation, &r.MaxRetries,
		&constraints, &errMsg, &r.CreatedAt, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.Status = types.RunStatus(status)
	r.Constraints = unmarshalMap(constraints)
	r.ErrorMessage = derefString(errMsg)
	return r, nil
}

// CreateRun inserts a run together with its queued job logs in one transaction.
func (db *DB) CreateRun(ctx context.Context, run *types.AutonomousRun, logs []*types.AutonomousJobLog) error {
	constraints, err := marshalJSONB(run.Constraints, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal constraints: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO autonomous_runs (id, status, resume_id, total_jobs, min_score, safe_mode,
		        require_confirmation, max_retries, constraints, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		run.ID, string(run.Status), run.ResumeID, run.TotalJobs, run.MinScore, run.SafeMode,
		run.RequireConfirmation, run.MaxRetries, constraints, run.CreatedAt,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range logs {
		details, err := marshalJSONB(l.Details, "{}")
		if err != nil {
			return fmt.Errorf("failed to marshal log details: %w", err)
		}
		batch.Queue(
			`INSERT INTO autonomous_job_logs (id, run_id, job_id, position, stage, status, details, message, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, run.ID, l.JobID, l.Position, string(l.Stage), string(l.Status), details, l.Message, l.CreatedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to create run logs: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves an autonomous run by ID
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*types.AutonomousRun, error) {
	r, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM autonomous_runs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// FindActiveRun returns the most recent queued or running run, if any.
func (db *DB) FindActiveRun(ctx context.Context) (*types.AutonomousRun, error) {
	r, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM autonomous_runs
		 WHERE status IN ('queued', 'running')
		 ORDER BY created_at DESC
		 LIMIT 1`))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active run: %w", err)
	}
	return r, nil
}

// MarkRunStarted moves a queued run to running. Runs stopped before they
// started are left alone.
func (db *DB) MarkRunStarted(ctx context.Context, id uuid.UUID, totalJobs int, at time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE autonomous_runs
		 SET status = 'running', total_jobs = $2, started_at = $3
		 WHERE id = $1 AND status = 'queued'`,
		id, totalJobs, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	return nil
}

// UpdateRunCounters persists the per-outcome job counters.
func (db *DB) UpdateRunCounters(ctx context.Context, run *types.AutonomousRun) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE autonomous_runs
		 SET processed_jobs = $2, submitted_jobs = $3, failed_jobs = $4, skipped_jobs = $5
		 WHERE id = $1`,
		run.ID, run.ProcessedJobs, run.SubmittedJobs, run.FailedJobs, run.SkippedJobs,
	)
	if err != nil {
		return fmt.Errorf("failed to update run counters: %w", err)
	}
	return nil
}

// FinishRun sets a terminal status while the run is still active.
func (db *DB) FinishRun(ctx context.Context, id uuid.UUID, status types.RunStatus, errMsg string, at time.Time) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE autonomous_runs
		 SET status = $2, error_message = $3, finished_at = $4
		 WHERE id = $1 AND status IN ('queued', 'running')`,
		id, string(status), nullString(errMsg), at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish run: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]types.AutonomousRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM autonomous_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.AutonomousRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

