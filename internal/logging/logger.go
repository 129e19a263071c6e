package logging

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
	levelCritical
)

// Fields captures structured context for JSON log entries.
// Include Worker and RunID for correlation across concurrent worker processes.
type Fields struct {
	Worker      string `json:"worker,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Chat        string `json:"chat,omitempty"`
	Step        string `json:"step,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	Component   string `json:"component,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
}

type entry struct {
	Timestamp string `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"msg"`
	Fields
}

var (
	levelOnce sync.Once
	minLevel  = levelInfo
)

func init() {
	log.SetFlags(0)
}

// Debug logs a debug-level message with structured fields in JSON format.
// Respects the AUTOWPP_LOG_LEVEL environment variable.
func Debug(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("debug", msg, fields)
}

// Info logs an info-level message with structured fields in JSON format.
// Default log level if AUTOWPP_LOG_LEVEL is unset.
func Info(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("info", msg, fields)
}

// Warn logs a warning-level message with structured fields in JSON format.
// Use for recoverable errors and degraded behavior.
func Warn(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("warn", msg, fields)
}

// Error logs an error-level message with structured fields in JSON format.
// Use for errors that require attention but don't stop the worker.
func Error(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("error", msg, fields)
}

// Critical logs a critical-level message with structured fields in JSON format.
// Use for fatal faults that end the worker process.
func Critical(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("critical", msg, fields)
}

func logWithLevel(level string, msg string, fields Fields) {
	if !shouldLog(level) {
		return
	}

	out := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		log.Printf("{\"level\":\"error\",\"msg\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	log.Print(string(payload))
}

func shouldLog(level string) bool {
	levelOnce.Do(func() {
		envLevel := strings.ToLower(os.Getenv("AUTOWPP_LOG_LEVEL"))
		if envLevel == "" {
			envLevel = "info"
		}
		minLevel = levelValue(envLevel)
	})
	return levelValue(level) >= minLevel
}

func levelValue(level string) int {
	switch level {
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	case "critical":
		return levelCritical
	default:
		return levelInfo
	}
}
