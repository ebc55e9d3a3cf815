package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-agent/internal/types"
)

const jobColumns = `id, external_id, source, title, company, location, work_type,
	description, description_html, url, apply_url, is_easy_apply,
	match_score, match_details, archived, created_at, updated_at`

func scanJob(row pgx.Row) (*types.JobPosting, error) {
	j := &types.JobPosting{}
	var details []byte
	err := row.Scan(&j.ID, &j.ExternalID, &j.Source, &j.Title, &j.Company, &j.Location, &j.WorkType,
		&j.Description, &j.DescriptionHTML, &j.URL, &j.ApplyURL, &j.IsEasyApply,
		&j.MatchScore, &details, &j.Archived, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.MatchDetails = unmarshalMap(details)
	return j, nil
}

// GetJob retrieves a job posting by ID
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.JobPosting, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM job_postings WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ExistingJobIDs reports which of ids exist.
func (db *DB) ExistingJobIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := db.pool.Query(ctx, `SELECT id FROM job_postings WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// UpdateJobMatch stores the latest match score and its breakdown.
func (db *DB) UpdateJobMatch(ctx context.Context, id uuid.UUID, score float64, details map[string]any) error {
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal match details: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE job_postings SET match_score = $2, match_details = $3, updated_at = NOW() WHERE id = $1`,
		id, score, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to update job match: %w", err)
	}
	return nil
}

// UpdateJobApplyURL records the resolved official apply URL.
func (db *DB) UpdateJobApplyURL(ctx context.Context, id uuid.UUID, applyURL string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_postings SET apply_url = $2, updated_at = NOW() WHERE id = $1`,
		id, applyURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update job apply url: %w", err)
	}
	return nil
}

// UpsertJob inserts a posting or refreshes it by (source, external_id).
// Match results and the archived flag are left untouched on conflict.
func (db *DB) UpsertJob(ctx context.Context, j *types.JobPosting) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_postings (id, external_id, source, title, company, location, work_type,
		        description, description_html, url, apply_url, is_easy_apply)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (source, external_id) DO UPDATE SET
		        title = $4, company = $5, location = $6, work_type = $7,
		        description = $8, description_html = $9, url = $10,
		        apply_url = COALESCE(NULLIF($11, ''), job_postings.apply_url),
		        is_easy_apply = $12, updated_at = NOW()
		 RETURNING id, created_at`,
		j.ID, j.ExternalID, j.Source, j.Title, j.Company, j.Location, j.WorkType,
		j.Description, j.DescriptionHTML, j.URL, j.ApplyURL, j.IsEasyApply,
	).Scan(&j.ID, &j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}
