package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/apply-agent/internal/workflow"
)

// SSEWriter frames run progress as Server-Sent Events. Each event carries a
// per-stream sequence number in its id field.
type SSEWriter struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	seq int
}

// NewSSEWriter sends the event-stream headers and lifts the server write
// deadline for the lifetime of the stream.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &SSEWriter{w: w, rc: rc}, nil
}

// WriteEvent sends data as JSON under the given event name.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// WriteProgress sends a run progress event named after its kind.
func (s *SSEWriter) WriteProgress(event workflow.ProgressEvent) error {
	return s.WriteEvent(event.Kind, event)
}

// WriteHeartbeat sends a comment line so proxies keep an idle stream open.
func (s *SSEWriter) WriteHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// WriteComplete sends the terminal event for runID.
func (s *SSEWriter) WriteComplete(runID, status string) error {
	return s.WriteEvent(workflow.EventComplete, map[string]string{
		"run_id": runID,
		"status": status,
	})
}
