package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState() {
	CloseAll()
	CloseAudit()
	opts = Options{}
	logLevel = LevelInfo
}

// TestAllCategoriesLog tests that all categories create log files when
// logging is enabled.
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	if err := Initialize(tempDir, Options{Enabled: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if !IsEnabled() {
		t.Error("Expected logging to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategoryStore,
		CategoryTools,
		CategorySession,
		CategoryModel,
		CategoryHistory,
		CategoryAPI,
		CategoryConfig,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}

		logger := Get(cat)
		logger.Info("info entry for %s", cat)
		logger.Debug("debug entry for %s", cat)
		logger.Warn("warn entry for %s", cat)
		logger.Error("error entry for %s", cat)
	}

	// The package-level helpers should land in the same files
	Boot("Convenience boot log")
	Store("Convenience store log")
	Tools("Convenience tools log")
	Session("Convenience session log")
	Model("Convenience model log")
	History("Convenience history log")
	API("Convenience api log")
	Config("Convenience config log")

	CloseAll()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(tempDir, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("Log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestLoggingDisabled tests that no logs are created when disabled.
func TestLoggingDisabled(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	if err := Initialize(filepath.Join(tempDir, "logs"), Options{Enabled: false}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsEnabled() {
		t.Error("Expected logging to be DISABLED")
	}
	if IsCategoryEnabled(CategoryStore) {
		t.Error("Categories should be disabled when logging is off")
	}

	Boot("must not reach disk")
	Store("must not reach disk")

	logger := Get(CategorySession)
	logger.Info("must not reach disk")
	logger.Error("must not reach disk")

	CloseAll()

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		entries, _ := os.ReadDir(filepath.Join(tempDir, "logs"))
		if len(entries) > 0 {
			t.Errorf("Expected NO log files when disabled, found %d", len(entries))
		}
	}
}

// TestCategoryToggle tests individual category enable/disable.
func TestCategoryToggle(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	err := Initialize(tempDir, Options{
		Enabled: true,
		Level:   "debug",
		Categories: map[string]bool{
			"boot":  true,
			"store": true,
			"model": false,
			"api":   false,
		},
	})
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryBoot) {
		t.Error("boot should be enabled")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("store should be enabled")
	}
	if IsCategoryEnabled(CategoryModel) {
		t.Error("model should be DISABLED")
	}
	if IsCategoryEnabled(CategoryAPI) {
		t.Error("api should be DISABLED")
	}

	// Category not in the map defaults to enabled
	if !IsCategoryEnabled(CategorySession) {
		t.Error("session (not in config) should default to enabled")
	}

	Boot("should reach disk")
	Store("should reach disk")
	Model("must not reach disk")
	API("must not reach disk")
	Session("should reach disk, default enabled")

	CloseAll()

	entries, _ := os.ReadDir(tempDir)

	hasModelLog := false
	hasAPILog := false
	hasBootLog := false
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, "model") {
			hasModelLog = true
		}
		if strings.Contains(name, "api") {
			hasAPILog = true
		}
		if strings.Contains(name, "boot") {
			hasBootLog = true
		}
	}

	if !hasBootLog {
		t.Error("Expected boot log file")
	}
	if hasModelLog {
		t.Error("Should NOT have model log file (disabled)")
	}
	if hasAPILog {
		t.Error("Should NOT have api log file (disabled)")
	}
}

// TestLevelFiltering checks that entries below the configured level are
// dropped.
func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	if err := Initialize(tempDir, Options{Enabled: true, Level: "warn"}); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	logger := Get(CategoryStore)
	logger.Debug("debug hidden")
	logger.Info("info hidden")
	logger.Warn("warn shown")
	logger.Error("error shown")

	CloseAll()

	entries, _ := os.ReadDir(tempDir)
	var content []byte
	for _, e := range entries {
		if strings.Contains(e.Name(), "store.log") {
			content, _ = os.ReadFile(filepath.Join(tempDir, e.Name()))
		}
	}
	if strings.Contains(string(content), "debug hidden") {
		t.Error("debug entry should have been filtered")
	}
	if strings.Contains(string(content), "info hidden") {
		t.Error("info entry should have been filtered")
	}
	if !strings.Contains(string(content), "warn shown") {
		t.Error("warn entry missing")
	}
	if !strings.Contains(string(content), "error shown") {
		t.Error("error entry missing")
	}
}

// TestTimerLogging tests the timing helper.
func TestTimerLogging(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	Initialize(tempDir, Options{Enabled: true, Level: "debug"})

	timer := StartTimer(CategorySession, "TestOperation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	if elapsed <= 0 {
		t.Error("timer returned a zero elapsed time")
	}

	CloseAll()
}

// TestRequestLogger checks correlation IDs appear in entries.
func TestRequestLogger(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	Initialize(tempDir, Options{Enabled: true, Level: "debug"})

	rl := WithRequestID(CategoryAPI, "req-1234").WithField("path", "/ai_layout")
	rl.Info("handling request")
	rl.Error("request failed")

	CloseAll()

	entries, _ := os.ReadDir(tempDir)
	var content []byte
	for _, e := range entries {
		if strings.Contains(e.Name(), "api.log") {
			content, _ = os.ReadFile(filepath.Join(tempDir, e.Name()))
		}
	}
	if !strings.Contains(string(content), "req:req-1234") {
		t.Error("request ID missing from log entries")
	}
	if !strings.Contains(string(content), "/ai_layout") {
		t.Error("field missing from log entries")
	}
}

// TestAuditTrail verifies the audit log emits parseable JSON lines.
func TestAuditTrail(t *testing.T) {
	tempDir := t.TempDir()
	resetState()

	Initialize(tempDir, Options{Enabled: true, Level: "debug"})
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit failed: %v", err)
	}

	audit := AuditWithSession("sess-42")
	audit.TurnStart(17)
	audit.ModelCall("qwen3:8b", 120, nil)
	audit.ToolExec("fetch_dataset", 5, nil)
	audit.ToolExec("fetch_dataset", 2, errors.New("unknown data source: unicorns"))
	audit.StoreMutation("insert", "products", nil)
	audit.LayoutFinal("Table", 1)
	audit.TurnEnd(2, 140, true)

	CloseAudit()
	CloseAll()

	entries, _ := os.ReadDir(tempDir)
	var content []byte
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit.log") {
			content, _ = os.ReadFile(filepath.Join(tempDir, e.Name()))
		}
	}
	if len(content) == 0 {
		t.Fatal("audit log is empty")
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var events []AuditEvent
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("audit line is not valid JSON: %v\n%s", err, line)
		}
		events = append(events, ev)
	}

	if len(events) != 7 {
		t.Fatalf("expected 7 audit events, got %d", len(events))
	}
	if events[0].EventType != AuditTurnStart {
		t.Errorf("first event = %s, want %s", events[0].EventType, AuditTurnStart)
	}
	if events[1].Target != "qwen3:8b" {
		t.Errorf("model event target = %q", events[1].Target)
	}
	if events[3].EventType != AuditToolError || events[3].Success {
		t.Errorf("failed tool event = %s success=%v, want %s success=false",
			events[3].EventType, events[3].Success, AuditToolError)
	}
	if events[3].Error != "unknown data source: unicorns" {
		t.Errorf("failed tool event error = %q", events[3].Error)
	}
	// Scoped logger fills the session on every event
	for _, ev := range events {
		if ev.SessionID != "sess-42" {
			t.Errorf("event %s has session %q, want sess-42", ev.EventType, ev.SessionID)
		}
	}
}
