package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/types"
)

// memStore is an in-memory Store. Reads return copies so callers cannot
// mutate stored rows without writing them back.
type memStore struct {
	mu sync.Mutex

	profile  *types.CandidateProfile
	jobs     map[uuid.UUID]*types.JobPosting
	apps     map[uuid.UUID]*types.Application
	runs     map[uuid.UUID]*types.AutonomousRun
	logs     map[uuid.UUID][]*types.AutonomousJobLog
	resumes  map[uuid.UUID]*types.Resume
	versions []*types.ResumeVersion
	events   []*types.AutomationIssueEvent

	learningSaves int
	matchUpdates  map[uuid.UUID]float64
	stopRequests  int

	// errs makes the named method fail.
	errs map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:         make(map[uuid.UUID]*types.JobPosting),
		apps:         make(map[uuid.UUID]*types.Application),
		runs:         make(map[uuid.UUID]*types.AutonomousRun),
		logs:         make(map[uuid.UUID][]*types.AutonomousJobLog),
		resumes:      make(map[uuid.UUID]*types.Resume),
		matchUpdates: make(map[uuid.UUID]float64),
		errs:         make(map[string]error),
	}
}

func (m *memStore) fail(method string) error {
	return m.errs[method]
}

func (m *memStore) GetProfile(context.Context) (*types.CandidateProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetProfile"); err != nil {
		return nil, err
	}
	if m.profile == nil {
		return nil, nil
	}
	p := *m.profile
	return &p, nil
}

func (m *memStore) SaveLearning(_ context.Context, _ uuid.UUID, stats types.LearningStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SaveLearning"); err != nil {
		return err
	}
	m.learningSaves++
	if m.profile != nil {
		m.profile.Learning = stats
	}
	return nil
}

func (m *memStore) MergeAnswers(_ context.Context, _ uuid.UUID, answers map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MergeAnswers"); err != nil {
		return err
	}
	if m.profile == nil {
		return nil
	}
	merged := cloneMap(m.profile.ApplicationAnswers)
	if merged == nil {
		merged = make(map[string]any, len(answers))
	}
	for k, v := range answers {
		merged[k] = v
	}
	m.profile.ApplicationAnswers = merged
	return nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*types.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetJob"); err != nil {
		return nil, err
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ExistingJobIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.jobs[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) UpdateJobMatch(_ context.Context, id uuid.UUID, score float64, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.MatchScore = &score
		j.MatchDetails = details
	}
	m.matchUpdates[id] = score
	return nil
}

func (m *memStore) UpdateJobApplyURL(_ context.Context, id uuid.UUID, applyURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.ApplyURL = applyURL
	}
	return nil
}

func (m *memStore) GetOrCreateApplication(_ context.Context, jobID uuid.UUID) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.JobID == jobID {
			cp := *a
			return &cp, nil
		}
	}
	a := &types.Application{ID: uuid.New(), JobID: jobID, Status: types.StatusQueued, CreatedAt: time.Now()}
	m.apps[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memStore) GetApplication(_ context.Context, id uuid.UUID) (*types.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) UpdateApplication(_ context.Context, app *types.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateApplication"); err != nil {
		return err
	}
	cp := *app
	m.apps[app.ID] = &cp
	return nil
}

func (m *memStore) RequestStop(_ context.Context, ids []uuid.UUID, reason, note string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRequests++
	n := 0
	for _, id := range ids {
		a, ok := m.apps[id]
		if !ok || (a.Status != types.StatusQueued && a.Status != types.StatusInProgress) {
			continue
		}
		a.Stop.Request(reason, at)
		a.Status = types.StatusReviewed
		a.Notes = note
		a.ErrorMessage = ""
		n++
	}
	return n, nil
}

func (m *memStore) CreateRun(_ context.Context, run *types.AutonomousRun, logs []*types.AutonomousJobLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateRun"); err != nil {
		return err
	}
	cp := *run
	m.runs[run.ID] = &cp
	for _, l := range logs {
		lc := *l
		m.logs[run.ID] = append(m.logs[run.ID], &lc)
	}
	return nil
}

func (m *memStore) GetRun(_ context.Context, id uuid.UUID) (*types.AutonomousRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetRun"); err != nil {
		return nil, err
	}
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) FindActiveRun(context.Context) (*types.AutonomousRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.IsActive() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) MarkRunStarted(_ context.Context, id uuid.UUID, totalJobs int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok && r.Status == types.RunQueued {
		r.Status = types.RunRunning
		r.TotalJobs = totalJobs
		r.StartedAt = &at
	}
	return nil
}

func (m *memStore) UpdateRunCounters(_ context.Context, run *types.AutonomousRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[run.ID]; ok {
		r.ProcessedJobs = run.ProcessedJobs
		r.SubmittedJobs = run.SubmittedJobs
		r.FailedJobs = run.FailedJobs
		r.SkippedJobs = run.SkippedJobs
	}
	return nil
}

func (m *memStore) FinishRun(_ context.Context, id uuid.UUID, status types.RunStatus, errMsg string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || !r.IsActive() {
		return false, nil
	}
	r.Status = status
	r.ErrorMessage = errMsg
	r.FinishedAt = &at
	return true, nil
}

// setRunStatus simulates a concurrent writer.
func (m *memStore) setRunStatus(id uuid.UUID, status types.RunStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id].Status = status
}

func (m *memStore) run(id uuid.UUID) types.AutonomousRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.runs[id]
}

func (m *memStore) UpsertLog(_ context.Context, runID, jobID uuid.UUID, position int) (*types.AutonomousJobLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs[runID] {
		if l.JobID == jobID {
			cp := *l
			cp.Details = cloneMap(l.Details)
			return &cp, nil
		}
	}
	l := &types.AutonomousJobLog{
		ID:       uuid.New(),
		RunID:    runID,
		JobID:    jobID,
		Position: position,
		Stage:    types.StageQueued,
		Status:   types.JobPending,
	}
	m.logs[runID] = append(m.logs[runID], l)
	cp := *l
	return &cp, nil
}

func (m *memStore) UpdateLog(_ context.Context, log *types.AutonomousJobLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateLog"); err != nil {
		return err
	}
	for i, l := range m.logs[log.RunID] {
		if l.ID == log.ID {
			cp := *log
			cp.Details = cloneMap(log.Details)
			m.logs[log.RunID][i] = &cp
			return nil
		}
	}
	return nil
}

func (m *memStore) ListLogs(_ context.Context, runID uuid.UUID) ([]types.AutonomousJobLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AutonomousJobLog, 0, len(m.logs[runID]))
	for _, l := range m.logs[runID] {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) RunApplicationIDs(_ context.Context, runID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, l := range m.logs[runID] {
		if l.ApplicationID != nil {
			ids = append(ids, *l.ApplicationID)
		}
	}
	return ids, nil
}

func (m *memStore) issueEvents() []*types.AutomationIssueEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.AutomationIssueEvent(nil), m.events...)
}

func (m *memStore) RecordIssueEvent(_ context.Context, event *types.AutomationIssueEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memStore) GetResume(_ context.Context, id uuid.UUID) (*types.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetPrimaryResume(context.Context) (*types.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resumes {
		if r.IsPrimary {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateResumeVersion(_ context.Context, v *types.ResumeVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, v)
	return nil
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Store = (*memStore)(nil)
