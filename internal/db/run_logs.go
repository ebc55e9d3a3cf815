package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-agent/internal/types"
)

const logColumns = `id, run_id, job_id, position, application_id, stage, status, attempts,
	resume_version_id, details, confirmation, message, created_at, updated_at`

func scanLog(row pgx.Row) (*types.AutonomousJobLog, error) {
	l := &types.AutonomousJobLog{}
	var stage, status string
	var details, confirmation []byte
	err := row.Scan(&l.ID, &l.RunID, &l.JobID, &l.Position, &l.ApplicationID, &stage, &status, &l.Attempts,
		&l.ResumeVersionID, &details, &confirmation, &l.Message, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Stage = types.Stage(stage)
	l.Status = types.JobLogStatus(status)
	l.Details = unmarshalMap(details)
	l.Confirmation = unmarshalMap(confirmation)
	return l, nil
}

// UpsertLog returns the log row for (runID, jobID), creating a pending one
// at position when the run was created without it.
func (db *DB) UpsertLog(ctx context.Context, runID, jobID uuid.UUID, position int) (*types.AutonomousJobLog, error) {
	details, err := json.Marshal(map[string]any{"job_id": jobID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log details: %w", err)
	}
	l, err := scanLog(db.pool.QueryRow(ctx,
		`INSERT INTO autonomous_job_logs (run_id, job_id, position, stage, status, details)
		 VALUES ($1, $2, $3, 'queued', 'pending', $4)
		 ON CONFLICT (run_id, job_id) DO UPDATE SET run_id = EXCLUDED.run_id
		 RETURNING `+logColumns,
		runID, jobID, position, details,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert run log: %w", err)
	}
	return l, nil
}

// UpdateLog writes back the mutable log columns.
func (db *DB) UpdateLog(ctx context.Context, log *types.AutonomousJobLog) error {
	details, err := marshalJSONB(log.Details, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal log details: %w", err)
	}
	var confirmation []byte
	if log.Confirmation != nil {
		if confirmation, err = json.Marshal(log.Confirmation); err != nil {
			return fmt.Errorf("failed to marshal confirmation: %w", err)
		}
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE autonomous_job_logs
		 SET application_id = $2, stage = $3, status = $4, attempts = $5,
		     resume_version_id = $6, details = $7, confirmation = $8, message = $9,
		     updated_at = NOW()
		 WHERE id = $1`,
		log.ID, log.ApplicationID, string(log.Stage), string(log.Status), log.Attempts,
		log.ResumeVersionID, details, confirmation, log.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to update run log: %w", err)
	}
	return nil
}

// ListLogs returns a run's job logs in submission order.
func (db *DB) ListLogs(ctx context.Context, runID uuid.UUID) ([]types.AutonomousJobLog, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+logColumns+` FROM autonomous_job_logs WHERE run_id = $1 ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	logs := []types.AutonomousJobLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// RunApplicationIDs returns the applications touched by a run.
func (db *DB) RunApplicationIDs(ctx context.Context, runID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT application_id FROM autonomous_job_logs
		 WHERE run_id = $1 AND application_id IS NOT NULL`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run applications: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan application id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
