// Package logging provides categorized loggers for testpilot on top of zap.
// Each subsystem logs through its own category so a noisy one (the browser
// console, for instance) can be silenced without touching the rest.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config loading
	CategoryBrowser  Category = "browser"  // Session lifecycle, console capture
	CategoryExecutor Category = "executor" // Step dispatch
	CategoryAPI      Category = "api"      // HTTP requests of api steps
	CategoryHealing  Category = "healing"  // Healing attempts and outcomes
	CategoryRunner   Category = "runner"   // Run orchestration
	CategoryReport   Category = "report"   // Aggregation and decoration
	CategoryServer   Category = "server"   // HTTP server
	CategoryWatch    Category = "watch"    // Suite file watching
)

// Settings mirrors config.LoggingConfig so this package stays import-free of config.
type Settings struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	Categories map[string]bool // per-category toggles, missing = enabled
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the process logger from settings and installs it.
func Initialize(s Settings) error {
	var cfg zap.Config
	switch strings.ToLower(s.Format) {
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(defaultString(s.Level, "info"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", s.Level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	Use(logger)
	mu.Lock()
	categories = s.Categories
	mu.Unlock()
	return nil
}

// Use installs an already built zap logger (the CLI and tests do this).
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Category returns the category the logger writes to.
func (l *Logger) Category() Category {
	return l.category
}

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...any)     { Get(CategoryBoot).Info(format, args...) }
func BootWarn(format string, args ...any) { Get(CategoryBoot).Warn(format, args...) }

func Browser(format string, args ...any)      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...any) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...any)  { Get(CategoryBrowser).Warn(format, args...) }
func BrowserError(format string, args ...any) { Get(CategoryBrowser).Error(format, args...) }

func Executor(format string, args ...any)      { Get(CategoryExecutor).Info(format, args...) }
func ExecutorDebug(format string, args ...any) { Get(CategoryExecutor).Debug(format, args...) }

func API(format string, args ...any)      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...any) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...any)  { Get(CategoryAPI).Warn(format, args...) }

func Healing(format string, args ...any)     { Get(CategoryHealing).Info(format, args...) }
func HealingWarn(format string, args ...any) { Get(CategoryHealing).Warn(format, args...) }

func Runner(format string, args ...any)      { Get(CategoryRunner).Info(format, args...) }
func RunnerWarn(format string, args ...any)  { Get(CategoryRunner).Warn(format, args...) }
func RunnerError(format string, args ...any) { Get(CategoryRunner).Error(format, args...) }

func ReportWarn(format string, args ...any) { Get(CategoryReport).Warn(format, args...) }

func Server(format string, args ...any)      { Get(CategoryServer).Info(format, args...) }
func ServerError(format string, args ...any) { Get(CategoryServer).Error(format, args...) }

func Watch(format string, args ...any)     { Get(CategoryWatch).Info(format, args...) }
func WatchWarn(format string, args ...any) { Get(CategoryWatch).Warn(format, args...) }

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
