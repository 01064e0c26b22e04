package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	mutex           sync.RWMutex
	globalConfig    Config
	isInitialized   bool
	globalLevelVar  = &slog.LevelVar{}
	forwardLevel    = &slog.LevelVar{}
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	logBuffer       *RingBuffer
	logCallback     LogCallback
	forwardSink     ForwardSink
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
	// Forward is the minimum level handed to the forward sink.
	Forward string `toml:"forward"`
}

// levelFor resolves a module's level: its override, else the global level,
// else info. An empty module name yields the global level.
func (c Config) levelFor(module string) slog.Level {
	if l, ok := parseLevel(c.Modules[module]); ok && module != "" {
		return l
	}
	if l, ok := parseLevel(c.Level); ok {
		return l
	}
	return slog.LevelInfo
}

func (c Config) forwardLevel() slog.Level {
	if l, ok := parseLevel(c.Forward); ok {
		return l
	}
	return slog.LevelInfo
}

// Initialize sets up the logging system. Loggers handed out earlier keep
// their pointers; their handlers are rebuilt in place with the new format.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)
	applyLevels(config)

	for module, levelVar := range moduleLevelVars {
		*moduleLoggers[module] = *newModuleLogger(config.Format, levelVar, module)
	}
	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// SetLevels re-applies the global, per-module and forward levels without
// rebuilding handlers. Modules absent from config fall back to the global
// level.
func SetLevels(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = config.Level
	globalConfig.Modules = config.Modules
	globalConfig.Forward = config.Forward
	applyLevels(config)
}

// applyLevels must be called with mutex held.
func applyLevels(config Config) {
	globalLevelVar.Set(config.levelFor(""))
	forwardLevel.Set(config.forwardLevel())
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(config.levelFor(module))
	}
}

// GetBuffer returns the log ring buffer for reading historical logs.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback sets a callback to be called for each new log entry.
// Used for publishing log events to SSE clients.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// GetLogger returns the logger for module, creating it on first use.
// Loggers created before Initialize log text at info.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(globalConfig.levelFor(module))
		format = globalConfig.Format
	}

	logger = newModuleLogger(format, levelVar, module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

func newModuleLogger(format string, level slog.Leveler, module string) *slog.Logger {
	return slog.New(createHandler(format, level)).With("module", module)
}

// createHandler fans records out to stdout, the journal when it is
// running, the ring buffer and the forward sink.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if isStdoutAvailable() {
		if format == "json" {
			stdout = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			stdout = slog.NewTextHandler(os.Stdout, opts)
		}
	}

	var journal slog.Handler
	if IsJournalAvailable() {
		journal = NewJournalHandler(level)
	}

	return NewMultiHandler(
		stdout,
		journal,
		NewBufferHandler(level),
		NewForwardHandler(level, forwardLevel),
	)
}

// isStdoutAvailable reports whether stdout goes somewhere other than a
// device node such as /dev/null. Terminals count as character devices.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	switch {
	case mode&os.ModeCharDevice != 0, mode&os.ModeNamedPipe != 0, mode&os.ModeSocket != 0:
		return true
	default:
		return mode.IsRegular()
	}
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
