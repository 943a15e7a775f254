package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"viewsmith/internal/logging"
	"viewsmith/internal/session"
)

// handleLayoutStream runs one request through the executor while
// streaming every loop event over SSE, ending with the final layout.
func (s *Server) handleLayoutStream(w http.ResponseWriter, r *http.Request) {
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	sid := r.URL.Query().Get("session_id")
	if sid == "" {
		sid = defaultSessionID
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	logging.API("GET /ai_layout_stream session=%s", sid)

	s.executor.Run(r.Context(), sid, message, func(ev session.Event) {
		if err := writeSSE(w, string(ev.Type), eventPayload(ev)); err != nil {
			logging.APIDebug("SSE write failed for session %s: %v", sid, err)
			return
		}
		flusher.Flush()
	})
}

// eventPayload shapes one loop event for the wire.
func eventPayload(ev session.Event) []byte {
	var payload any
	switch ev.Type {
	case session.EventTool:
		payload = map[string]any{"text": ev.Text, "name": ev.Name, "args": ev.Args}
	case session.EventToolResult:
		payload = map[string]any{"text": ev.Text, "title": ev.Title}
	case session.EventData:
		payload = map[string]any{"text": ev.Text, "rows": ev.Rows}
	case session.EventFinal:
		payload = map[string]any{"layout": ev.Layout, "datasets": ev.Datasets}
	default:
		payload = map[string]any{"text": ev.Text}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{}`)
	}
	return raw
}

func writeSSE(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
