package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// ParseLevel maps "debug", "info" and "error"; anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a small leveled wrapper around the standard logger.
type Logger struct {
	level Level
	info  *log.Logger
	debug *log.Logger
	err   *log.Logger
	fatal *log.Logger
}

func New(level string) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		level: ParseLevel(level),
		info:  log.New(os.Stdout, "INFO: ", flags),
		debug: log.New(os.Stdout, "DEBUG: ", flags),
		err:   log.New(os.Stderr, "ERROR: ", flags),
		fatal: log.New(os.Stderr, "FATAL: ", flags),
	}
}

// NewWriter sends every level to w. Used by tests and the CLI.
func NewWriter(level string, w io.Writer) *Logger {
	flags := log.Lmsgprefix
	return &Logger{
		level: ParseLevel(level),
		info:  log.New(w, "INFO: ", flags),
		debug: log.New(w, "DEBUG: ", flags),
		err:   log.New(w, "ERROR: ", flags),
		fatal: log.New(w, "FATAL: ", flags),
	}
}

func Discard() *Logger { return NewWriter("error", io.Discard) }

func (l *Logger) Debug(format string, v ...any) {
	if l.level > LevelDebug {
		return
	}
	l.debug.Printf(format, v...)
}

func (l *Logger) Info(format string, v ...any) {
	if l.level > LevelInfo {
		return
	}
	l.info.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.err.Printf(format, v...)
}

func (l *Logger) Fatal(format string, v ...any) {
	l.fatal.Fatalf(format, v...)
}
