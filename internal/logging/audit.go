package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	// Request lifecycle
	AuditTurnStart AuditEventType = "turn_start"
	AuditTurnEnd   AuditEventType = "turn_end"

	// Model calls
	AuditModelRequest  AuditEventType = "model_request"
	AuditModelResponse AuditEventType = "model_response"
	AuditModelError    AuditEventType = "model_error"

	// Tool execution
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	// Store mutations
	AuditStoreInsert AuditEventType = "store_insert"
	AuditStoreUpdate AuditEventType = "store_update"
	AuditStoreDelete AuditEventType = "store_delete"

	// Final layout emission
	AuditLayoutFinal AuditEventType = "layout_final"
)

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	Target     string         `json:"target,omitempty"` // Tool name, model name, table
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger handles structured audit logging, optionally scoped to a
// session so callers do not repeat the session ID on every event.
type AuditLogger struct {
	sessionID string
}

// InitAudit initializes the audit log file. A no-op when logging is
// disabled.
func InitAudit() error {
	if !IsEnabled() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	loggersMu.RLock()
	dir := logsDir
	loggersMu.RUnlock()
	if dir == "" {
		return fmt.Errorf("logging not initialized")
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithSession creates an audit logger scoped to a session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes an audit event as one JSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// Convenience methods below cover the events the executor and store
// emit, so call sites stay one line.

// TurnStart logs the start of an agent turn.
func (a *AuditLogger) TurnStart(inputLen int) {
	a.Log(AuditEvent{
		EventType: AuditTurnStart,
		Success:   true,
		Fields:    map[string]any{"input_len": inputLen},
		Message:   fmt.Sprintf("Turn started (%d chars)", inputLen),
	})
}

// TurnEnd logs the end of an agent turn.
func (a *AuditLogger) TurnEnd(steps int, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  AuditTurnEnd,
		Success:    success,
		DurationMs: durationMs,
		Fields:     map[string]any{"steps": steps},
		Message:    fmt.Sprintf("Turn ended (%d steps, %dms, success=%v)", steps, durationMs, success),
	})
}

// ModelCall logs a model API round trip.
func (a *AuditLogger) ModelCall(model string, durationMs int64, err error) {
	eventType := AuditModelResponse
	errMsg := ""
	if err != nil {
		eventType = AuditModelError
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     model,
		Success:    err == nil,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Model call: %s (%dms, success=%v)", model, durationMs, err == nil),
	})
}

// ToolExec logs a tool execution.
func (a *AuditLogger) ToolExec(toolName string, durationMs int64, err error) {
	eventType := AuditToolComplete
	errMsg := ""
	if err != nil {
		eventType = AuditToolError
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     toolName,
		Success:    err == nil,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Tool %s (%dms, success=%v)", toolName, durationMs, err == nil),
	})
}

// StoreMutation logs an insert, update or delete against a table.
func (a *AuditLogger) StoreMutation(action, table string, err error) {
	var eventType AuditEventType
	switch action {
	case "insert":
		eventType = AuditStoreInsert
	case "update":
		eventType = AuditStoreUpdate
	case "delete":
		eventType = AuditStoreDelete
	default:
		eventType = AuditEventType("store_" + action)
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    table,
		Success:   err == nil,
		Error:     errMsg,
		Message:   fmt.Sprintf("Store %s on %s (success=%v)", action, table, err == nil),
	})
}

// LayoutFinal logs the final layout emitted for a turn.
func (a *AuditLogger) LayoutFinal(layoutType string, datasetCount int) {
	a.Log(AuditEvent{
		EventType: AuditLayoutFinal,
		Target:    layoutType,
		Success:   true,
		Fields:    map[string]any{"datasets": datasetCount},
		Message:   fmt.Sprintf("Final layout %s with %d datasets", layoutType, datasetCount),
	})
}
