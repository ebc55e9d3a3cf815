package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-agent/internal/types"
)

// StopLogLine is appended to the automation log of every application
// flagged by RequestStop.
const StopLogLine = "Stop requested from autonomous run control."

const applicationColumns = `id, job_id, status, resume_version_id, automation_log, notes,
	error_message, blocker_details, user_inputs, applied_at, created_at, updated_at`

func scanApplication(row pgx.Row) (*types.Application, error) {
	a := &types.Application{}
	var status string
	var errMsg *string
	var blockers, inputs []byte
	err := row.Scan(&a.ID, &a.JobID, &status, &a.ResumeVersionID, &a.AutomationLog, &a.Notes,
		&errMsg, &blockers, &inputs, &a.AppliedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = types.ApplicationStatus(status)
	a.ErrorMessage = derefString(errMsg)
	a.BlockerDetails = unmarshalMap(blockers)
	a.LoadInputsBlob(unmarshalMap(inputs))
	return a, nil
}

// GetOrCreateApplication returns the application for jobID, creating a
// queued one if none exists.
func (db *DB) GetOrCreateApplication(ctx context.Context, jobID uuid.UUID) (*types.Application, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	a, err := scanApplication(db.pool.QueryRow(ctx,
		`INSERT INTO applications (job_id, status)
		 VALUES ($1, 'queued')
		 ON CONFLICT (job_id) DO UPDATE SET job_id = EXCLUDED.job_id
		 RETURNING `+applicationColumns,
		jobID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create application: %w", err)
	}
	return a, nil
}

// GetApplication retrieves an application by ID
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	a, err := scanApplication(db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

// UpdateApplication writes back every mutable application column.
func (db *DB) UpdateApplication(ctx context.Context, app *types.Application) error {
	var blockers []byte
	if app.BlockerDetails != nil {
		var err error
		if blockers, err = json.Marshal(app.BlockerDetails); err != nil {
			return fmt.Errorf("failed to marshal blocker details: %w", err)
		}
	}
	inputs, err := json.Marshal(app.InputsBlob())
	if err != nil {
		return fmt.Errorf("failed to marshal user inputs: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE applications
		 SET status = $2, resume_version_id = $3, automation_log = $4, notes = $5,
		     error_message = $6, blocker_details = $7, user_inputs = $8,
		     applied_at = $9, updated_at = NOW()
		 WHERE id = $1`,
		app.ID, string(app.Status), app.ResumeVersionID, app.AutomationLog, app.Notes,
		nullString(app.ErrorMessage), blockers, inputs, app.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("application not found: %s", app.ID)
	}
	return nil
}

// RequestStop flags queued and in-progress applications among ids in a
// single statement and moves them to reviewed with note.
func (db *DB) RequestStop(ctx context.Context, ids []uuid.UUID, reason, note string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	flags, err := json.Marshal(map[string]any{
		types.StopRequestedKey:   true,
		types.StopRequestedAtKey: at.UTC().Format(time.RFC3339),
		types.StopReasonKey:      reason,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal stop flags: %w", err)
	}
	line := "[" + at.UTC().Format("15:04:05") + "] " + StopLogLine

	result, err := db.pool.Exec(ctx,
		`UPDATE applications
		 SET user_inputs = COALESCE(user_inputs, '{}'::jsonb) || $2::jsonb,
		     status = 'reviewed',
		     notes = $3,
		     error_message = NULL,
		     automation_log = CASE WHEN automation_log = '' THEN $4
		                           ELSE automation_log || E'\n' || $4 END,
		     updated_at = NOW()
		 WHERE id = ANY($1) AND status IN ('queued', 'in_progress')`,
		ids, flags, note, line,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to request stop: %w", err)
	}
	return int(result.RowsAffected()), nil
}
