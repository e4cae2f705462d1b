package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// Logger interface defines the logging methods
type Logger interface {
	Info(format string, args ...any)
	Debug(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SetOutput(out io.Writer)
	SetErrorOutput(out io.Writer)
	SetVerbose(enabled bool)
	SetQuiet(enabled bool)
	IsVerbose() bool
	IsQuiet() bool
}

// ConsoleLogger writes human-readable lines to stdout (errors to stderr).
// Colours and icons are used only on a terminal; otherwise every line is
// timestamped so service logs can be correlated.
type ConsoleLogger struct {
	mu      sync.Mutex
	output  io.Writer
	errOut  io.Writer
	tty     bool
	verbose atomic.Bool
	quiet   atomic.Bool
}

type level struct {
	icon  string
	plain string
	color string
}

const (
	blueColor   = "\033[34m"
	greenColor  = "\033[32m"
	yellowColor = "\033[33m"
	redColor    = "\033[31m"
	grayColor   = "\033[90m"
	resetColor  = "\033[0m"
)

var (
	levelInfo    = level{"ℹ️", "INFO", blueColor}
	levelDebug   = level{"🔍", "DEBUG", grayColor}
	levelSuccess = level{"✓", "SUCCESS", greenColor}
	levelWarn    = level{"⚠", "WARN", yellowColor}
	levelError   = level{"✗", "ERROR", redColor}
)

var (
	instance Logger
	once     sync.Once
)

// GetLogger returns the singleton instance
func GetLogger() Logger {
	once.Do(func() {
		instance = &ConsoleLogger{
			output: os.Stdout,
			errOut: os.Stderr,
			tty:    term.IsTerminal(int(os.Stdout.Fd())),
		}
	})
	return instance
}

// SetVerbose enables or disables verbose mode globally
func SetVerbose(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

func IsVerbose() bool {
	return GetLogger().IsVerbose()
}

func SetQuiet(quiet bool) {
	GetLogger().SetQuiet(quiet)
}

func IsQuiet() bool {
	return GetLogger().IsQuiet()
}

// Global helper functions for convenience
func Info(format string, args ...any)    { GetLogger().Info(format, args...) }
func Debug(format string, args ...any)   { GetLogger().Debug(format, args...) }
func Success(format string, args ...any) { GetLogger().Success(format, args...) }
func Warn(format string, args ...any)    { GetLogger().Warn(format, args...) }
func Error(format string, args ...any)   { GetLogger().Error(format, args...) }

// -------------------- Implementation --------------------

func (l *ConsoleLogger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = out
}

func (l *ConsoleLogger) SetErrorOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errOut = out
}

func (l *ConsoleLogger) SetVerbose(enabled bool) { l.verbose.Store(enabled) }
func (l *ConsoleLogger) IsVerbose() bool         { return l.verbose.Load() }
func (l *ConsoleLogger) SetQuiet(enabled bool)   { l.quiet.Store(enabled) }
func (l *ConsoleLogger) IsQuiet() bool           { return l.quiet.Load() }

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000")
}

func (l *ConsoleLogger) log(toErr bool, lv level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.output
	if toErr {
		out = l.errOut
	}

	switch {
	case l.tty && lv == levelDebug:
		fmt.Fprintf(out, "%s[%s] %s %s%s\n", lv.color, timestamp(), lv.icon, msg, resetColor)
	case l.tty:
		fmt.Fprintf(out, "%s%s %s%s\n", lv.color, lv.icon, msg, resetColor)
	default:
		fmt.Fprintf(out, "%s %-7s %s\n", timestamp(), lv.plain, msg)
	}
}

func (l *ConsoleLogger) Info(format string, args ...any) {
	if l.IsQuiet() {
		return
	}
	l.log(false, levelInfo, format, args...)
}

func (l *ConsoleLogger) Debug(format string, args ...any) {
	if !l.IsVerbose() {
		return
	}
	l.log(false, levelDebug, format, args...)
}

func (l *ConsoleLogger) Success(format string, args ...any) {
	if l.IsQuiet() {
		return
	}
	l.log(false, levelSuccess, format, args...)
}

func (l *ConsoleLogger) Warn(format string, args ...any) {
	if l.IsQuiet() {
		return
	}
	l.log(false, levelWarn, format, args...)
}

// Error is never silenced by quiet mode.
func (l *ConsoleLogger) Error(format string, args ...any) {
	l.log(true, levelError, format, args...)
}
