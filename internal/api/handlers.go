package api

import (
	"encoding/json"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"viewsmith/internal/history"
	"viewsmith/internal/layout"
	"viewsmith/internal/logging"
	"viewsmith/internal/session"
)

type layoutRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// handleLayout runs one request through the executor and returns the
// full result in a single response.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	sid := req.SessionID
	if sid == "" {
		sid = defaultSessionID
	}

	reqLog := logging.WithRequestID(logging.CategoryAPI, chimiddleware.GetReqID(r.Context())).
		WithField("session", sid)
	reqLog.Info("POST /ai_layout")

	res := s.executor.Run(r.Context(), sid, req.Message, nil)
	if res.State != session.StateConverged {
		reqLog.Warn("run ended in state %s after %d steps", res.State, res.Steps)
	}
	JSON(w, http.StatusOK, res)
}

// handleChatHistory returns the session's events, windowed when the
// server is configured with a history cap.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session_id")
	if sid == "" {
		sid = defaultSessionID
	}

	var (
		events []history.Event
		err    error
	)
	if s.opts.HistoryWindow > 0 {
		events, err = s.history.Recent(sid, s.opts.HistoryWindow)
	} else {
		events, err = s.history.Session(sid)
	}
	if err != nil {
		logging.APIError("GET /chat_history session=%s: %v", sid, err)
		Error(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if events == nil {
		events = []history.Event{}
	}

	JSON(w, http.StatusOK, map[string]any{"session_id": sid, "messages": events})
}

// handleLastView replays the most recent view snapshot of a session.
// Snapshots missing their datasets get them recomputed from the store.
func (s *Server) handleLastView(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session_id")
	if sid == "" {
		sid = defaultSessionID
	}

	events, err := s.history.Session(sid)
	if err != nil {
		logging.APIError("GET /last_view session=%s: %v", sid, err)
		Error(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Role != history.RoleView {
			continue
		}
		node, datasets := decodeViewMeta(events[i].Meta)
		if node == nil {
			continue
		}
		if len(datasets) == 0 {
			datasets, _ = session.Resolve(s.db, node, nil)
		}
		JSON(w, http.StatusOK, map[string]any{"layout": node, "datasets": datasets})
		return
	}

	JSON(w, http.StatusOK, map[string]any{"layout": nil, "datasets": layout.DatasetSet{}})
}

// decodeViewMeta recovers the layout and datasets from a view event's
// meta. Events served from the in-memory mirror carry typed values;
// events scanned from the log carry plain JSON shapes.
func decodeViewMeta(meta map[string]any) (*layout.Node, layout.DatasetSet) {
	if meta == nil {
		return nil, nil
	}

	var node *layout.Node
	switch v := meta["layout"].(type) {
	case *layout.Node:
		node = v
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, nil
		}
		parsed, err := layout.Parse(raw)
		if err != nil {
			logging.APIDebug("Skipping unparsable view snapshot: %v", err)
			return nil, nil
		}
		node = parsed
	default:
		return nil, nil
	}

	var datasets layout.DatasetSet
	switch v := meta["datasets"].(type) {
	case layout.DatasetSet:
		datasets = v
	case map[string]any:
		if raw, err := json.Marshal(v); err == nil {
			_ = json.Unmarshal(raw, &datasets)
		}
	}
	return node, datasets
}
