// Package events keeps the chronological record of simulator state changes.
package events

import (
	"fmt"

	"github.com/psantana5/opsim/pkg/models"
	"github.com/sirupsen/logrus"
)

// Log is an append-only event record, newest entry first
type Log struct {
	clock   *models.Clock
	entries []string
	logger  *logrus.Entry
}

// NewLog creates an empty log stamped by clock
func NewLog(clock *models.Clock, logger *logrus.Entry) *Log {
	return &Log{
		clock:   clock,
		entries: make([]string, 0),
		logger:  logger,
	}
}

// Record appends a formatted entry stamped with the current tick
func (l *Log) Record(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.entries = append([]string{fmt.Sprintf("[Time: %d] %s", l.clock.Now(), msg)}, l.entries...)
	if l.logger != nil {
		l.logger.WithField("tick", l.clock.Now()).Debug(msg)
	}
}

// Entries returns a copy of the log, newest first
func (l *Log) Entries() []string {
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns at most n entries, newest first
func (l *Log) Recent(n int) []string {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]string, n)
	copy(out, l.entries[:n])
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	return len(l.entries)
}

// Restore replaces the log with saved entries (newest first)
func (l *Log) Restore(entries []string) {
	l.entries = make([]string, len(entries))
	copy(l.entries, entries)
}
