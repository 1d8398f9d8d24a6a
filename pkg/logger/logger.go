// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	mu           sync.RWMutex
	currentLevel = INFO
	base         = newLogger(os.Stdout, false)
)

func newLogger(w io.Writer, jsonOutput bool) zerolog.Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Configure replaces the output sink. JSON lines are written when jsonOutput
// is set, a human readable console format otherwise.
func Configure(w io.Writer, jsonOutput bool) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, jsonOutput)
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// ParseLevel maps a textual level to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func logMessage(level LogLevel, component string, message string, fields map[string]any) {
	mu.RLock()
	if level < currentLevel {
		mu.RUnlock()
		return
	}
	l := base
	mu.RUnlock()

	var ev *zerolog.Event
	switch level {
	case DEBUG:
		ev = l.Debug()
	case INFO:
		ev = l.Info()
	case WARN:
		ev = l.Warn()
	case ERROR:
		ev = l.Error()
	default:
		// WithLevel keeps zerolog from calling os.Exit; FatalCF exits itself.
		ev = l.WithLevel(zerolog.FatalLevel)
	}

	if component != "" {
		ev = ev.Str("component", component)
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			ev = ev.AnErr(k, err)
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component string, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugCF(component string, message string, fields map[string]any) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component string, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component string, message string, fields map[string]any) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component string, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component string, message string, fields map[string]any) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component string, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorCF(component string, message string, fields map[string]any) {
	logMessage(ERROR, component, message, fields)
}

// FatalCF logs and terminates the process with exit code 1.
func FatalCF(component string, message string, fields map[string]any) {
	logMessage(FATAL, component, message, fields)
	os.Exit(1)
}
