// Package logging provides categorized file-based logging for viewsmith.
// Logs are written to a logs directory with separate files per category.
// When logging is disabled every call is a cheap no-op, so callers never
// need to guard their log statements.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and shutdown
	CategoryStore   Category = "store"   // SQLite store operations
	CategoryTools   Category = "tools"   // Tool dispatch and execution
	CategorySession Category = "session" // Agent loop per request
	CategoryModel   Category = "model"   // Model API calls
	CategoryHistory Category = "history" // Chat history persistence
	CategoryAPI     Category = "api"     // HTTP handlers
	CategoryConfig  Category = "config"  // Configuration loading and reloads
)

// Options controls the logging subsystem. It is passed in explicitly at
// startup rather than read from disk here, which keeps this package free
// of config-format knowledge.
type Options struct {
	Enabled    bool
	Level      string          // debug, info, warn, error (default info)
	Categories map[string]bool // nil means all categories enabled
}

// Logger writes tagged entries to one category's file. Loggers handed
// out for disabled categories carry a nil inner logger and drop every
// message.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	logLevel  int
)

// Severity order. A message is written when its level is at or above
// the active one.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelTag(level int) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Initialize sets up the logging directory and applies options.
// Should be called once at startup. When o.Enabled is false this is a
// silent no-op and no directory is created.
func Initialize(dir string, o Options) error {
	optsMu.Lock()
	opts = o
	logLevel = parseLevel(o.Level)
	optsMu.Unlock()

	if !o.Enabled {
		return nil
	}
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}

	loggersMu.Lock()
	logsDir = dir
	loggersMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== viewsmith logging initialized ===")
	boot.Info("Logs directory: %s", dir)
	boot.Info("Log level: %s", o.Level)
	if len(o.Categories) > 0 {
		enabled := 0
		for _, on := range o.Categories {
			if on {
				enabled++
			}
		}
		boot.Info("Enabled categories: %d/%d", enabled, len(o.Categories))
	} else {
		boot.Info("All categories enabled")
	}
	return nil
}

// Reconfigure applies new options at runtime, e.g. after a config file
// reload. Open log files are kept; disabled categories simply stop
// receiving entries.
func Reconfigure(o Options) {
	optsMu.Lock()
	defer optsMu.Unlock()
	opts.Enabled = o.Enabled
	opts.Categories = o.Categories
	opts.Level = o.Level
	logLevel = parseLevel(o.Level)
}

// IsEnabled returns whether file logging is active.
func IsEnabled() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.Enabled
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.Enabled {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get hands out the logger for a category, opening its file on first
// use. When logging or the category is off the returned logger is
// inert, so callers never have to check.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if logsDir == "" {
		loggersMu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Another goroutine may have opened it while we waited.
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation a matter of deleting old files.
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func currentLevel() int {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return logLevel
}

func (l *Logger) emit(level int, format string, args ...any) {
	if l.logger == nil || currentLevel() > level {
		return
	}
	l.logger.Printf("[%s] %s", levelTag(level), fmt.Sprintf(format, args...))
}

// Debug, Info, Warn and Error write a formatted entry tagged with its
// severity. Entries below the active level are dropped; Error is never
// filtered.

func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, format, args...) }

func (l *Logger) Info(format string, args ...any) { l.emit(LevelInfo, format, args...) }

func (l *Logger) Warn(format string, args ...any) { l.emit(LevelWarn, format, args...) }

func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, format, args...) }

// CloseAll closes every open log file and resets the registry. Call it
// on the way out of main.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	logsDir = ""
}

// One-line helpers, one family per category, so call sites can log
// without holding a Logger. Each is inert when its category is off.

func Boot(format string, args ...any)      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...any) { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...any) { Get(CategoryBoot).Error(format, args...) }

func Store(format string, args ...any)      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...any)  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...any) { Get(CategoryStore).Error(format, args...) }

func Tools(format string, args ...any)      { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debug(format, args...) }
func ToolsError(format string, args ...any) { Get(CategoryTools).Error(format, args...) }

func Session(format string, args ...any)      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...any) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...any)  { Get(CategorySession).Warn(format, args...) }
func SessionError(format string, args ...any) { Get(CategorySession).Error(format, args...) }

func Model(format string, args ...any)      { Get(CategoryModel).Info(format, args...) }
func ModelDebug(format string, args ...any) { Get(CategoryModel).Debug(format, args...) }
func ModelWarn(format string, args ...any)  { Get(CategoryModel).Warn(format, args...) }
func ModelError(format string, args ...any) { Get(CategoryModel).Error(format, args...) }

func History(format string, args ...any)      { Get(CategoryHistory).Info(format, args...) }
func HistoryDebug(format string, args ...any) { Get(CategoryHistory).Debug(format, args...) }
func HistoryError(format string, args ...any) { Get(CategoryHistory).Error(format, args...) }

func API(format string, args ...any)      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...any) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...any)  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...any) { Get(CategoryAPI).Error(format, args...) }

func Config(format string, args ...any)      { Get(CategoryConfig).Info(format, args...) }
func ConfigDebug(format string, args ...any) { Get(CategoryConfig).Debug(format, args...) }
func ConfigError(format string, args ...any) { Get(CategoryConfig).Error(format, args...) }

// RequestLogger stamps every entry with a correlation ID so one
// request's lines can be pulled out of a shared category file.
type RequestLogger struct {
	logger    *Logger
	requestID string
	fields    map[string]any
}

// WithRequestID wraps the category's logger for a single request.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Get(category),
		requestID: requestID,
		fields:    make(map[string]any),
	}
}

// WithField attaches a key/value pair that rides along on every entry.
func (r *RequestLogger) WithField(key string, value any) *RequestLogger {
	r.fields[key] = value
	return r
}

func (r *RequestLogger) formatMsg(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if len(r.fields) > 0 {
		return fmt.Sprintf("[req:%s] %s | %v", r.requestID, msg, r.fields)
	}
	return fmt.Sprintf("[req:%s] %s", r.requestID, msg)
}

func (r *RequestLogger) emit(level int, format string, args ...any) {
	if r.logger.logger == nil || currentLevel() > level {
		return
	}
	r.logger.logger.Printf("[%s] %s", levelTag(level), r.formatMsg(format, args...))
}

func (r *RequestLogger) Debug(format string, args ...any) { r.emit(LevelDebug, format, args...) }

func (r *RequestLogger) Info(format string, args ...any) { r.emit(LevelInfo, format, args...) }

func (r *RequestLogger) Warn(format string, args ...any) { r.emit(LevelWarn, format, args...) }

func (r *RequestLogger) Error(format string, args ...any) { r.emit(LevelError, format, args...) }

// Timer measures one operation from StartTimer to one of the Stop
// calls.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts the clock for a named operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s finished in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo is Stop at info level, for operations worth seeing in
// normal runs.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s finished in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold escalates to a warning when the operation ran
// longer than allowed.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v, over the %v threshold", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s finished in %v", t.op, elapsed)
	}
	return elapsed
}
