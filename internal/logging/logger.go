package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// AppName is used for the log directory and the log file prefix
const AppName = "conductor-chat"

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string (debug, info, warn, error) to a LogLevel.
// Unknown values map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog.Logger with a component-aware API
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
	file    *os.File
}

var globalLogger *Logger

// Config represents logging configuration
type Config struct {
	Level        LogLevel
	EnableFile   bool
	LogDir       string // Optional: defaults to standard user log directory
	EnableStderr bool   // Must stay false while the TUI owns the terminal
}

// DefaultConfig returns sensible logging defaults
func DefaultConfig() *Config {
	return &Config{
		Level:        LevelInfo,
		EnableFile:   true,
		LogDir:       DefaultDir(),
		EnableStderr: false,
	}
}

// DefaultDir returns the standard location for user-level logs
func DefaultDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, AppName, "logs")
		}
		return filepath.Join(home, ".local", "share", AppName, "logs")
	case "darwin":
		return filepath.Join(home, "Library", "Logs", AppName)
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, AppName, "logs")
		}
		return filepath.Join(home, "AppData", "Local", AppName, "logs")
	default:
		return filepath.Join(home, "."+AppName, "logs")
	}
}

// FileName returns the name of the log file written on the given day
func FileName(day time.Time) string {
	return fmt.Sprintf("%s-%s.log", AppName, day.Format("2006-01-02"))
}

// Initialize sets up the global logger with the given configuration
func Initialize(config *Config) error {
	var writers []io.Writer
	var logFile *os.File

	if config.EnableStderr {
		writers = append(writers, os.Stderr)
	}

	if config.EnableFile {
		if err := os.MkdirAll(config.LogDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", config.LogDir, err)
		}

		logPath := filepath.Join(config.LogDir, FileName(time.Now()))

		var err error
		logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to create log file %s: %w", logPath, err)
		}

		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	multiWriter := io.MultiWriter(writers...)

	level := new(slog.LevelVar)
	level.Set(config.Level.slogLevel())

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
		AddSource: true,
	}

	globalLogger = &Logger{
		slogger: slog.New(slog.NewTextHandler(multiWriter, opts)),
		level:   level,
		file:    logFile,
	}

	// Route stray log.Printf calls from dependencies to the same place
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	if globalLogger == nil {
		if err := Initialize(DefaultConfig()); err != nil {
			level := new(slog.LevelVar)
			globalLogger = &Logger{
				slogger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
				level:   level,
			}
		}
	}
	return globalLogger
}

// Level returns the current level of the logger
func (l *Logger) Level() LogLevel {
	switch l.level.Level() {
	case slog.LevelDebug:
		return LevelDebug
	case slog.LevelWarn:
		return LevelWarn
	case slog.LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Close closes the log file if it was opened
func (l *Logger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
		file:    l.file,
	}
}

// WithComponent returns a logger with a component attribute
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// Debug logs a debug message using the global logger
func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

// Info logs an info message using the global logger
func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

// Error logs an error message using the global logger
func Error(msg string, args ...any) {
	GetLogger().Error(msg, args...)
}

// WithComponent returns a logger with a component attribute using the global logger
func WithComponent(component string) *Logger {
	return GetLogger().WithComponent(component)
}

// UpdateLevel changes the level of the global logger and every logger derived from it
func UpdateLevel(newLevel LogLevel) {
	if globalLogger != nil {
		globalLogger.level.Set(newLevel.slogLevel())
	}
}

// Reconfigure closes the current log file and reinitializes the global logger
func Reconfigure(config *Config) error {
	if globalLogger != nil {
		if err := globalLogger.Close(); err != nil {
			log.Printf("Warning: Failed to close existing logger: %v", err)
		}
	}
	return Initialize(config)
}

// Close closes the global logger
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
