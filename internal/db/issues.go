package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/types"
)

// RecordIssueEvent appends an automation issue event. Events are never updated.
func (db *DB) RecordIssueEvent(ctx context.Context, event *types.AutomationIssueEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	required, err := marshalJSONB(event.RequiredInputs, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal required inputs: %w", err)
	}
	questions, err := marshalJSONB(event.SuggestedQuestions, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal suggested questions: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO automation_issue_events (id, application_id, job_id, source, domain, category,
		        event_type, message, required_user_inputs, suggested_questions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.ApplicationID, event.JobID, event.Source, event.Domain, event.Category,
		string(event.EventType), event.Message, required, questions, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record issue event: %w", err)
	}
	return nil
}

// IssueCategoryCount is one row of the blocker summary.
type IssueCategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// IssueSummary counts detected issue events per category since the given time,
// most frequent first.
func (db *DB) IssueSummary(ctx context.Context, since time.Time) ([]IssueCategoryCount, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM automation_issue_events
		 WHERE event_type = 'detected' AND created_at >= $1
		 GROUP BY category
		 ORDER BY COUNT(*) DESC, category ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize issues: %w", err)
	}
	defer rows.Close()

	summary := []IssueCategoryCount{}
	for rows.Next() {
		var c IssueCategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan issue summary: %w", err)
		}
		summary = append(summary, c)
	}
	return summary, rows.Err()
}
