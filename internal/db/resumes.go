package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-agent/internal/types"
)

const resumeColumns = `id, name, file_path, file_type, parsed_data, is_primary, created_at`

func scanResume(row pgx.Row) (*types.Resume, error) {
	r := &types.Resume{}
	var parsed []byte
	if err := row.Scan(&r.ID, &r.Name, &r.FilePath, &r.FileType, &parsed, &r.IsPrimary, &r.CreatedAt); err != nil {
		return nil, err
	}
	if len(parsed) > 0 {
		r.ParsedData = &types.ParsedResume{}
		if err := json.Unmarshal(parsed, r.ParsedData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parsed resume: %w", err)
		}
	}
	return r, nil
}

// GetResume retrieves a resume by ID
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*types.Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

// GetPrimaryResume returns the primary resume, falling back to the most
// recently uploaded one.
func (db *DB) GetPrimaryResume(ctx context.Context) (*types.Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes
		 ORDER BY is_primary DESC, created_at DESC
		 LIMIT 1`))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get primary resume: %w", err)
	}
	return r, nil
}

// CreateResumeVersion stores a tailored resume variant.
func (db *DB) CreateResumeVersion(ctx context.Context, v *types.ResumeVersion) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	keywords, err := marshalJSONB(v.KeywordsAdded, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	sections, err := marshalJSONB(v.SectionsModified, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO resume_versions (id, base_resume_id, job_id, file_path, tailoring_notes,
		        keywords_added, sections_modified, llm_model_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		v.ID, v.BaseResumeID, v.JobID, v.FilePath, v.TailoringNotes, keywords, sections, v.LLMModelUsed,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create resume version: %w", err)
	}
	return nil
}

// CreateResume stores an uploaded resume. Marking it primary clears the
// flag on every other resume.
func (db *DB) CreateResume(ctx context.Context, r *types.Resume) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	var parsed []byte
	if r.ParsedData != nil {
		var err error
		if parsed, err = json.Marshal(r.ParsedData); err != nil {
			return fmt.Errorf("failed to marshal parsed resume: %w", err)
		}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if r.IsPrimary {
		if _, err := tx.Exec(ctx, `UPDATE resumes SET is_primary = FALSE WHERE is_primary`); err != nil {
			return fmt.Errorf("failed to clear primary resume: %w", err)
		}
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO resumes (id, name, file_path, file_type, parsed_data, is_primary)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		r.ID, r.Name, r.FilePath, r.FileType, parsed, r.IsPrimary,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create resume: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit resume: %w", err)
	}
	return nil
}
