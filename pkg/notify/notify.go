// Package notify implements the transient user notification sink. All
// user-visible failures are short-lived and dismissible; nothing here
// blocks.
package notify

import (
	"sync"

	"github.com/leadboard/leadboard/pkg/logger"
)

// Log emits notifications to the structured log
type Log struct {
	logger logger.Logger
}

// NewLog creates a log-backed notifier
func NewLog(log logger.Logger) *Log {
	return &Log{logger: log.With("component", "notify")}
}

// Success records a success notification
func (l *Log) Success(msg string) {
	l.logger.Info(msg, "severity", "success")
}

// Error records an error notification
func (l *Log) Error(msg string) {
	l.logger.Warn(msg, "severity", "error")
}

// Collector records notifications in memory; used in tests and anywhere
// the messages need to be surfaced to a caller.
type Collector struct {
	mu        sync.Mutex
	Successes []string
	Errors    []string
}

// Success records a success notification
func (c *Collector) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Successes = append(c.Successes, msg)
}

// Error records an error notification
func (c *Collector) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors = append(c.Errors, msg)
}
