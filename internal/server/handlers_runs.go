package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/workflow"
)

// ActiveRunResponse is returned by GET /autonomous/active-run.
type ActiveRunResponse struct {
	Active bool                 `json:"active"`
	Run    *types.AutonomousRun `json:"run,omitempty"`
}

// RunLogsResponse is returned by GET /autonomous/runs/{id}/logs.
type RunLogsResponse struct {
	RunID string                   `json:"run_id"`
	Logs  []types.AutonomousJobLog `json:"logs"`
}

// handleStartRun queues a new autonomous run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStartRun(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	startReq, err := req.ToStartRequest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	run, err := s.runs.StartRun(r.Context(), startReq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, run)
}

// handleGetRun returns one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListLogs returns a run's job logs in position order.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}
	logs, err := s.runs.ListLogs(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []types.AutonomousJobLog{}
	}
	s.jsonResponse(w, http.StatusOK, RunLogsResponse{RunID: runID.String(), Logs: logs})
}

// handleStopRun stops a run and flags its in-flight applications.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.StopRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Run stop requested",
		logger.String("run_id", runID.String()),
		logger.String("status", string(run.Status)))
	s.jsonResponse(w, http.StatusOK, run)
}

// handleActiveRun reports the queued or running run, if any.
func (s *Server) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetActiveRun(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ActiveRunResponse{Active: run != nil, Run: run})
}

// handleStreamRun streams run progress as Server-Sent Events until the run
// finishes or the client disconnects.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathRunID(w, r)
	if !ok {
		return
	}
	if s.progress == nil {
		s.errorResponse(w, http.StatusNotImplemented, "progress streaming is not configured")
		return
	}

	// Subscribe before loading the run so no event between the two is lost.
	events, unsubscribe := s.progress.Subscribe(runID)
	defer unsubscribe()

	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteEvent(workflow.EventRun, run); err != nil {
		return
	}
	if run.IsTerminal() {
		_ = sse.WriteComplete(runID.String(), string(run.Status))
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			if err := sse.WriteProgress(event); err != nil {
				return
			}
			if event.Kind == workflow.EventComplete {
				return
			}
		case <-ticker.C:
			current, err := s.runs.GetRun(r.Context(), runID)
			if err == nil && current.IsTerminal() {
				_ = sse.WriteComplete(runID.String(), string(current.Status))
				return
			}
			if err := sse.WriteHeartbeat(); err != nil {
				return
			}
		}
	}
}

// pathRunID parses the {id} path value, writing a 400 when it is malformed.
func (s *Server) pathRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return s.pathID(w, r, "run")
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: "id", Message: "invalid " + resource + " ID"})
		return uuid.Nil, false
	}
	return id, true
}
