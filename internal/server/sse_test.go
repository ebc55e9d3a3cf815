package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/workflow"
)

func TestSSEWriter_Framing(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteProgress(workflow.ProgressEvent{Kind: workflow.EventStage, Message: "scoring"}))
	require.NoError(t, sse.WriteHeartbeat())
	require.NoError(t, sse.WriteComplete("run-1", "completed"))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, w.Flushed)

	body := w.Body.String()
	assert.Contains(t, body, "id: 1\nevent: stage\ndata: {")
	assert.Contains(t, body, ": ping\n\n")
	assert.Contains(t, body, "id: 2\nevent: complete\ndata: {\"run_id\":\"run-1\",\"status\":\"completed\"}\n\n")
}
