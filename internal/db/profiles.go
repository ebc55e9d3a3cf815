package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-agent/internal/types"
)

// GetProfile returns the canonical candidate profile, or nil if none exists.
// When several rows exist the oldest one wins.
func (db *DB) GetProfile(ctx context.Context) (*types.CandidateProfile, error) {
	p := &types.CandidateProfile{}
	var skills, roles, locations, experience, answers []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, full_name, email, phone, location, linkedin_url, headline, summary,
		        skills, target_roles, target_locations, experience,
		        current_ctc, expected_ctc, notice_period, can_join_immediately,
		        work_authorization, needs_sponsorship, application_answers,
		        created_at, updated_at
		 FROM candidate_profiles
		 ORDER BY created_at ASC
		 LIMIT 1`,
	).Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Location, &p.LinkedInURL, &p.Headline, &p.Summary,
		&skills, &roles, &locations, &experience,
		&p.CurrentCTC, &p.ExpectedCTC, &p.NoticePeriod, &p.CanJoinImmediately,
		&p.WorkAuthorization, &p.NeedsSponsorship, &answers,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Skills = unmarshalStrings(skills)
	p.TargetRoles = unmarshalStrings(roles)
	p.TargetLocations = unmarshalStrings(locations)
	if len(experience) > 0 {
		if err := json.Unmarshal(experience, &p.Experience); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile experience: %w", err)
		}
	}
	p.LoadAnswersBlob(unmarshalMap(answers))

	return p, nil
}

// SaveLearning replaces the learning stats nested in application_answers
// without touching the other answers.
func (db *DB) SaveLearning(ctx context.Context, profileID uuid.UUID, stats types.LearningStats) error {
	blob, err := json.Marshal(stats.ToMap())
	if err != nil {
		return fmt.Errorf("failed to marshal learning stats: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE candidate_profiles
		 SET application_answers = jsonb_set(COALESCE(application_answers, '{}'::jsonb), $2, $3::jsonb, true),
		     updated_at = NOW()
		 WHERE id = $1`,
		profileID, []string{types.LearningKey}, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to save learning stats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %s", profileID)
	}
	return nil
}

// MergeAnswers upserts answers into application_answers. Other keys,
// including the nested learning stats, are kept.
func (db *DB) MergeAnswers(ctx context.Context, profileID uuid.UUID, answers map[string]any) error {
	blob, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to marshal application answers: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE candidate_profiles
		 SET application_answers = COALESCE(application_answers, '{}'::jsonb) || $2::jsonb,
		     updated_at = NOW()
		 WHERE id = $1`,
		profileID, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to merge application answers: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %s", profileID)
	}
	return nil
}

// UpsertProfile creates or replaces the candidate profile.
func (db *DB) UpsertProfile(ctx context.Context, p *types.CandidateProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	skills, err := marshalJSONB(p.Skills, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}
	roles, err := marshalJSONB(p.TargetRoles, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal target roles: %w", err)
	}
	locations, err := marshalJSONB(p.TargetLocations, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal target locations: %w", err)
	}
	experience := []byte("[]")
	if p.Experience != nil {
		if experience, err = json.Marshal(p.Experience); err != nil {
			return fmt.Errorf("failed to marshal experience: %w", err)
		}
	}
	answers, err := json.Marshal(p.AnswersBlob())
	if err != nil {
		return fmt.Errorf("failed to marshal application answers: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO candidate_profiles (id, full_name, email, phone, location, linkedin_url, headline, summary,
		        skills, target_roles, target_locations, experience,
		        current_ctc, expected_ctc, notice_period, can_join_immediately,
		        work_authorization, needs_sponsorship, application_answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (id) DO UPDATE SET
		        full_name = $2, email = $3, phone = $4, location = $5, linkedin_url = $6,
		        headline = $7, summary = $8, skills = $9, target_roles = $10,
		        target_locations = $11, experience = $12, current_ctc = $13,
		        expected_ctc = $14, notice_period = $15, can_join_immediately = $16,
		        work_authorization = $17, needs_sponsorship = $18,
		        application_answers = $19, updated_at = NOW()
		 RETURNING created_at`,
		p.ID, p.FullName, p.Email, p.Phone, p.Location, p.LinkedInURL, p.Headline, p.Summary,
		skills, roles, locations, experience,
		p.CurrentCTC, p.ExpectedCTC, p.NoticePeriod, p.CanJoinImmediately,
		p.WorkAuthorization, p.NeedsSponsorship, answers,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
