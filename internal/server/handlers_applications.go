package server

import "net/http"

// handleAnswerBlockers saves user answers for an application's blockers
// and optionally retries it.
func (s *Server) handleAnswerBlockers(w http.ResponseWriter, r *http.Request) {
	appID, ok := s.pathID(w, r, "application")
	if !ok {
		return
	}
	req, err := decodeBlockerAnswers(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	answerReq, err := req.ToAnswerRequest(appID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.runs.AnswerBlockers(r.Context(), answerReq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if result != nil && result.RetryRun != nil {
		status = http.StatusAccepted
	}
	s.jsonResponse(w, status, result)
}
