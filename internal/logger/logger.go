package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/PhiFever/idbadge-scanner/pkg/utils"
)

// Level is a log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	ERROR
	CRITICAL
)

var levelNames = map[Level]string{
	DEBUG:    "DEBUG",
	INFO:     "INFO",
	WARNING:  "WARNING",
	ERROR:    "ERROR",
	CRITICAL: "CRITICAL",
}

// String returns the level name
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a config string such as "debug" or "WARN" to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARNING, nil
	case "ERROR":
		return ERROR, nil
	case "CRITICAL", "FATAL":
		return CRITICAL, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Logger is the leveled logger behind the package functions
type Logger struct {
	level   Level
	writers []io.Writer
	file    *os.File
	mu      sync.Mutex
}

type setupOptions struct {
	dir     string
	noFile  bool
	console io.Writer
}

// Option customizes Setup
type Option func(*setupOptions)

// WithDir writes the daily log file into dir instead of the app data directory
func WithDir(dir string) Option {
	return func(o *setupOptions) { o.dir = dir }
}

// WithConsole replaces stdout as the console writer
func WithConsole(w io.Writer) Option {
	return func(o *setupOptions) { o.console = w }
}

// WithoutFile logs to the console only
func WithoutFile() Option {
	return func(o *setupOptions) { o.noFile = true }
}

var (
	globalLogger *Logger
	loggerMu     sync.Mutex
)

// Setup initializes the global logger. Later calls return the existing logger.
func Setup(level Level, opts ...Option) (*Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger, nil
	}

	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	console := o.console
	if console == nil {
		console = os.Stdout
	}
	logger := &Logger{
		level:   level,
		writers: []io.Writer{console},
	}

	if !o.noFile {
		dir := o.dir
		if dir == "" {
			var err error
			dir, err = utils.GetAppDataPath("logs")
			if err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}

		date := time.Now().Format("2006-01-02")
		logFile := filepath.Join(dir, date+".log")

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		logger.file = file
		logger.writers = append(logger.writers, file)
	}

	globalLogger = logger
	return logger, nil
}

// SetLevel changes the minimum level that is written
func SetLevel(level Level) {
	l := GetLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput replaces all writers, closing the log file if one is open
func SetOutput(writers ...io.Writer) {
	l := GetLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.writers = writers
}

// GetLogger returns the global logger, setting up a stdout-only INFO logger if needed
func GetLogger() *Logger {
	loggerMu.Lock()
	l := globalLogger
	loggerMu.Unlock()

	if l == nil {
		l, _ = Setup(INFO, WithoutFile())
	}
	return l
}

// Close flushes and closes the log file
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if globalLogger == nil || globalLogger.file == nil {
		return nil
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	err := globalLogger.file.Close()
	globalLogger.file = nil
	globalLogger.writers = []io.Writer{os.Stdout}
	return err
}

func (l *Logger) log(level Level, msg string, includeTrace bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	logMsg := fmt.Sprintf("%s [%s] %s\n", timestamp, level, msg)

	for _, w := range l.writers {
		w.Write([]byte(logMsg))
	}

	if includeTrace && level >= ERROR {
		traceMsg := fmt.Sprintf("%s [%s] %s\n", timestamp, level, getStackTrace())
		for _, w := range l.writers {
			w.Write([]byte(traceMsg))
		}
	}
}

// Debug logs a debug message
func Debug(msg string) {
	GetLogger().log(DEBUG, msg, false)
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...interface{}) {
	GetLogger().log(DEBUG, fmt.Sprintf(format, args...), false)
}

// Info logs an informational message
func Info(msg string) {
	GetLogger().log(INFO, msg, false)
}

// Infof logs a formatted informational message
func Infof(format string, args ...interface{}) {
	GetLogger().log(INFO, fmt.Sprintf(format, args...), false)
}

// Warning logs a warning
func Warning(msg string) {
	GetLogger().log(WARNING, msg, false)
}

// Warningf logs a formatted warning
func Warningf(format string, args ...interface{}) {
	GetLogger().log(WARNING, fmt.Sprintf(format, args...), false)
}

// Error logs an error with a stack trace
func Error(msg string) {
	GetLogger().log(ERROR, msg, true)
}

// Errorf logs a formatted error with a stack trace
func Errorf(format string, args ...interface{}) {
	GetLogger().log(ERROR, fmt.Sprintf(format, args...), true)
}

// ErrorNoTrace logs an error without a stack trace
func ErrorNoTrace(msg string) {
	GetLogger().log(ERROR, msg, false)
}

// ErrorfNoTrace logs a formatted error without a stack trace
func ErrorfNoTrace(format string, args ...interface{}) {
	GetLogger().log(ERROR, fmt.Sprintf(format, args...), false)
}

// Critical logs a critical message with a stack trace
func Critical(msg string) {
	GetLogger().log(CRITICAL, msg, true)
}

// Criticalf logs a formatted critical message with a stack trace
func Criticalf(format string, args ...interface{}) {
	GetLogger().log(CRITICAL, fmt.Sprintf(format, args...), true)
}

func getStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
