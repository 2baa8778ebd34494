package decisionlog

import (
	"context"
	"sync"

	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// MemoryLog is an in-memory decision log. Its content is lost on exit.
type MemoryLog struct {
	entries []core.LogEntry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryLog creates a new in-memory decision log
func NewMemoryLog(logger *zap.Logger) *MemoryLog {
	return &MemoryLog{
		logger: logger,
	}
}

// Append adds the entry at the end of the log
func (l *MemoryLog) Append(ctx context.Context, entry core.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	l.logger.Debug("Decision recorded in memory", zap.String("opportunity_id", entry.OpportunityID))
	return nil
}

// Load returns a copy of every entry in processing order
func (l *MemoryLog) Load(ctx context.Context) ([]core.LogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}
