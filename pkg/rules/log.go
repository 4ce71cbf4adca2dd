package rules

import (
	"sync"
	"time"

	"github.com/ycslms/lmsflow/pkg/models"
)

// executionLog is an append-only, bounded history of rule results.
type executionLog struct {
	mu        sync.RWMutex
	entries   []*models.RuleExecutionResult
	retention time.Duration
	capacity  int
}

func newExecutionLog(retention time.Duration, capacity int) *executionLog {
	return &executionLog{retention: retention, capacity: capacity}
}

// append stores r. When the log grows past capacity, entries older than the
// retention window are pruned first, then the oldest entries are dropped.
func (l *executionLog) append(r *models.RuleExecutionResult, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, r)

	if l.capacity <= 0 || len(l.entries) <= l.capacity {
		return
	}

	cutoff := now.Add(-l.retention)
	kept := l.entries[:0]

	for _, e := range l.entries {
		if !e.ExecutedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}

	clear(l.entries[len(kept):])
	l.entries = kept

	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append([]*models.RuleExecutionResult(nil), l.entries[over:]...)
	}
}

// between returns entries with from <= ExecutedAt < to. A zero bound is open.
func (l *executionLog) between(from, to time.Time) []*models.RuleExecutionResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.RuleExecutionResult, 0)

	for _, e := range l.entries {
		if !from.IsZero() && e.ExecutedAt.Before(from) {
			continue
		}

		if !to.IsZero() && !e.ExecutedAt.Before(to) {
			continue
		}

		c := *e
		out = append(out, &c)
	}

	return out
}

func (l *executionLog) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}
