// Package history persists per-session conversation events to an
// append-only JSONL log. A bounded in-memory mirror serves the hot
// read paths; the file remains the source of truth and a full scan can
// recover any session without an index.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"viewsmith/internal/logging"
)

// Event roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleView      = "view"
)

// DefaultMirrorLimit bounds how many events per session stay in memory.
const DefaultMirrorLimit = 256

// maxLineBytes caps a single history line during scans. View snapshots
// carry whole layouts and datasets, so lines can get large.
const maxLineBytes = 4 * 1024 * 1024

// Event is one immutable record of a conversation turn or a rendered
// view snapshot.
type Event struct {
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Thinking  []string       `json:"thinking"`
	Meta      map[string]any `json:"meta"`
}

// sessionMirror buffers the most recent events of one session.
type sessionMirror struct {
	events []Event
	total  int  // appends observed since the log was opened
	synced bool // events start at the session's first durable record
}

// Store is the append-only session history log.
type Store struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	mirror map[string]*sessionMirror
	limit  int
}

// New opens (creating if needed) the history log at path. mirrorLimit
// bounds the per-session in-memory buffer; values below one fall back
// to DefaultMirrorLimit.
func New(path string, mirrorLimit int) (*Store, error) {
	if mirrorLimit < 1 {
		mirrorLimit = DefaultMirrorLimit
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history log: %w", err)
	}

	logging.History("History log opened at %s (mirror limit %d)", path, mirrorLimit)
	return &Store{
		path:   path,
		file:   file,
		mirror: make(map[string]*sessionMirror),
		limit:  mirrorLimit,
	}, nil
}

// Path returns the log file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying log file. Further appends fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Append writes one event for the session and updates its mirror. The
// durable write and the mirror update happen under the same lock so
// both serving paths observe the same order.
func (s *Store) Append(sessionID, role, content string, thinking []string, meta map[string]any) (Event, error) {
	if thinking == nil {
		thinking = []string{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	event := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Thinking:  thinking,
		Meta:      meta,
	}

	line, err := json.Marshal(event)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode history event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return Event{}, fmt.Errorf("history log is closed")
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		logging.HistoryError("Failed to append history event: %v", err)
		return Event{}, fmt.Errorf("failed to append history event: %w", err)
	}

	m := s.mirror[sessionID]
	if m == nil {
		m = &sessionMirror{}
		s.mirror[sessionID] = m
	}
	m.events = append(m.events, event)
	m.total++
	if len(m.events) > s.limit {
		overflow := len(m.events) - s.limit
		m.events = append(m.events[:0], m.events[overflow:]...)
	}

	logging.HistoryDebug("Appended %s event for session %s", role, sessionID)
	return event, nil
}

// Session returns every event of a session in append order. Complete
// sessions are served from the mirror; anything else (cold session,
// evicted tail) falls back to a full scan of the log, done without the
// append lock, after which the mirror is repopulated.
func (s *Store) Session(sessionID string) ([]Event, error) {
	s.mu.Lock()
	m := s.mirror[sessionID]
	if m != nil && m.synced && m.total == len(m.events) {
		out := make([]Event, len(m.events))
		copy(out, m.events)
		s.mu.Unlock()
		return out, nil
	}
	before := 0
	if m != nil {
		before = m.total
	}
	s.mu.Unlock()

	events, err := s.scan(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	m = s.mirror[sessionID]
	// Appends that raced the scan may be missing from events; leave the
	// mirror as-is in that case so the next read scans again.
	raced := m != nil && m.total != before
	if !raced {
		refreshed := &sessionMirror{total: len(events), synced: true}
		start := 0
		if len(events) > s.limit {
			start = len(events) - s.limit
		}
		refreshed.events = append(refreshed.events, events[start:]...)
		s.mirror[sessionID] = refreshed
	}
	s.mu.Unlock()

	return events, nil
}

// Recent returns up to n of the most recent events for a session, in
// append order. Synced sessions are served straight from the mirror.
func (s *Store) Recent(sessionID string, n int) ([]Event, error) {
	if n < 1 {
		return []Event{}, nil
	}

	s.mu.Lock()
	m := s.mirror[sessionID]
	if m != nil && m.synced {
		out := tail(m.events, n)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	events, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return tail(events, n), nil
}

func tail(events []Event, n int) []Event {
	start := 0
	if len(events) > n {
		start = len(events) - n
	}
	out := make([]Event, len(events)-start)
	copy(out, events[start:])
	return out
}

// scan reads the whole log and collects the session's events in file
// order. Unparsable lines are skipped rather than failing the read.
func (s *Store) scan(sessionID string) ([]Event, error) {
	timer := logging.StartTimer(logging.CategoryHistory, "scan")
	defer timer.StopWithThreshold(250 * time.Millisecond)

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	events := []Event{}
	skipped := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			skipped++
			continue
		}
		if event.SessionID == sessionID {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan history log: %w", err)
	}
	if skipped > 0 {
		logging.HistoryDebug("Skipped %d unparsable history lines", skipped)
	}

	logging.HistoryDebug("Scanned history for session %s: %d events", sessionID, len(events))
	return events, nil
}
