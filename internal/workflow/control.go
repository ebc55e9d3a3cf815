package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
)

// Run request limits.
const (
	MaxJobsPerRun   = 100
	MaxRetriesLimit = 5
	DefaultMinScore = 75.0
)

// StopNote is written to applications flagged by StopRun.
const StopNote = "Automation stop requested from autonomous run control."

// StopReason is the stop reason recorded for applications of a stopped run.
func StopReason(runID uuid.UUID) string {
	return fmt.Sprintf("Autonomous run %s stopped from run control", runID)
}

// StartRequest describes a new run.
type StartRequest struct {
	JobIDs              []uuid.UUID
	ResumeID            *uuid.UUID
	MinScore            *float64
	SafeMode            bool
	RequireConfirmation bool
	MaxRetries          int
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	DefaultMinScore float64
}

// Service is the run-control surface: it starts, stops and reports on runs.
// Started runs execute on background goroutines.
type Service struct {
	store       Store
	coordinator *Coordinator
	cfg         ServiceConfig
	now         func() time.Time

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewService creates a Service.
func NewService(store Store, coordinator *Coordinator, cfg ServiceConfig) *Service {
	if cfg.DefaultMinScore <= 0 {
		cfg.DefaultMinScore = DefaultMinScore
	}
	return &Service{
		store:       store,
		coordinator: coordinator,
		cfg:         cfg,
		now:         time.Now,
	}
}

// StartRun validates req, records a queued run with one pending log per job
// and executes it in the background. Only one run may be active at a time.
func (s *Service) StartRun(ctx context.Context, req StartRequest) (*types.AutonomousRun, error) {
	if len(req.JobIDs) == 0 {
		return nil, &ValidationError{Field: "job_ids", Message: "at least one job is required"}
	}
	if len(req.JobIDs) > MaxJobsPerRun {
		return nil, &ValidationError{Field: "job_ids", Message: fmt.Sprintf("too many jobs in one run (max %d)", MaxJobsPerRun)}
	}
	minScore := s.cfg.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	if minScore < 0 || minScore > 100 {
		return nil, &ValidationError{Field: "min_score", Message: "must be between 0 and 100"}
	}
	maxRetries := min(max(req.MaxRetries, 0), MaxRetriesLimit)

	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.store.FindActiveRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check active run: %w", err)
	}
	if active != nil {
		return nil, &ActiveRunError{RunID: active.ID, Status: string(active.Status)}
	}

	resume, err := s.resolveResume(ctx, req.ResumeID)
	if err != nil {
		return nil, err
	}

	jobIDs := dedupe(req.JobIDs)
	existing, err := s.store.ExistingJobIDs(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check jobs: %w", err)
	}
	var missing []uuid.UUID
	for _, id := range jobIDs {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Resource: "jobs", IDs: missing}
	}

	now := s.now()
	run := &types.AutonomousRun{
		ID:                  uuid.New(),
		Status:              types.RunQueued,
		ResumeID:            resume.ID,
		TotalJobs:           len(jobIDs),
		MinScore:            minScore,
		SafeMode:            req.SafeMode,
		RequireConfirmation: req.RequireConfirmation,
		MaxRetries:          maxRetries,
		Constraints:         DefaultConstraints(),
		CreatedAt:           now,
	}
	logs := make([]*types.AutonomousJobLog, len(jobIDs))
	for i, id := range jobIDs {
		logs[i] = &types.AutonomousJobLog{
			ID:        uuid.New(),
			RunID:     run.ID,
			JobID:     id,
			Position:  i,
			Stage:     types.StageQueued,
			Status:    types.JobPending,
			Details:   map[string]any{"job_id": id.String()},
			CreatedAt: now,
		}
	}
	if err := s.store.CreateRun(ctx, run, logs); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	params := RunParams{
		RunID:               run.ID,
		JobIDs:              jobIDs,
		ResumeID:            &resume.ID,
		MinScore:            minScore,
		SafeMode:            req.SafeMode,
		RequireConfirmation: req.RequireConfirmation,
		MaxRetries:          maxRetries,
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.coordinator.Run(bg, params); err != nil {
			logger.FromContext(bg).Error("Background run ended with error",
				logger.String("run_id", params.RunID.String()),
				logger.Error(err))
		}
	}()

	logger.FromContext(ctx).Info("Autonomous run queued",
		logger.String("run_id", run.ID.String()),
		logger.Int("total_jobs", run.TotalJobs),
		logger.Float64("min_score", minScore),
		logger.Int("max_retries", maxRetries))
	return run, nil
}

func (s *Service) resolveResume(ctx context.Context, id *uuid.UUID) (*types.Resume, error) {
	if id != nil {
		resume, err := s.store.GetResume(ctx, *id)
		if err != nil {
			return nil, fmt.Errorf("failed to load resume: %w", err)
		}
		if resume == nil {
			return nil, &NotFoundError{Resource: "resume", IDs: []uuid.UUID{*id}}
		}
		return resume, nil
	}
	resume, err := s.store.GetPrimaryResume(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load resume: %w", err)
	}
	if resume == nil {
		return nil, &ValidationError{Field: "resume_id", Message: "no resume uploaded; upload a resume before starting a run"}
	}
	return resume, nil
}

// StopRun stops a run and flags its in-flight applications. Stopping a
// finished run returns it unchanged.
func (s *Service) StopRun(ctx context.Context, runID uuid.UUID) (*types.AutonomousRun, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.IsTerminal() {
		return run, nil
	}

	now := s.now()
	if _, err := s.store.FinishRun(ctx, runID, types.RunStopped, "", now); err != nil {
		return nil, fmt.Errorf("failed to stop run: %w", err)
	}

	log := logger.FromContext(ctx).With(logger.String("run_id", runID.String()))
	appIDs, err := s.store.RunApplicationIDs(ctx, runID)
	if err != nil {
		log.Warn("Failed to list run applications", logger.Error(err))
	} else if len(appIDs) > 0 {
		flagged, err := s.store.RequestStop(ctx, appIDs, StopReason(runID), StopNote, now)
		if err != nil {
			log.Warn("Failed to flag run applications", logger.Error(err))
		} else {
			log.Info("Stop requested from autonomous run control", logger.Int("applications", flagged))
		}
	}
	return s.GetRun(ctx, runID)
}

// GetRun returns the run or a NotFoundError.
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (*types.AutonomousRun, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, &NotFoundError{Resource: "autonomous run", IDs: []uuid.UUID{runID}}
	}
	return run, nil
}

// GetActiveRun returns the queued or running run, or nil when idle.
func (s *Service) GetActiveRun(ctx context.Context) (*types.AutonomousRun, error) {
	run, err := s.store.FindActiveRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active run: %w", err)
	}
	return run, nil
}

// ListLogs returns the run's job logs in position order.
func (s *Service) ListLogs(ctx context.Context, runID uuid.UUID) ([]types.AutonomousJobLog, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	logs, err := s.store.ListLogs(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}

// Wait blocks until background runs have returned or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("background runs still active"), ctx.Err())
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
