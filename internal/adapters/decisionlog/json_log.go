package decisionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// JSONLog stores the decision log as one indented JSON array. Every
// append reads the whole file and rewrites it through a temporary file
// and a rename, so readers never see a partial write. Writers in other
// processes are not coordinated with: the last rename wins.
type JSONLog struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewJSONLog creates a new JSON file decision log
func NewJSONLog(path string, logger *zap.Logger) *JSONLog {
	return &JSONLog{
		path:   path,
		logger: logger,
	}
}

// Path returns the file backing the log
func (l *JSONLog) Path() string {
	return l.path
}

// Load returns every entry in processing order. A missing file is an empty log.
func (l *JSONLog) Load(ctx context.Context) ([]core.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Append adds the entry at the end of the log
func (l *JSONLog) Append(ctx context.Context, entry core.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A log that cannot be read is never overwritten
	entries, err := l.load()
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	if err := l.write(entries); err != nil {
		return &core.PersistenceError{Op: "write", Path: l.path, Err: err}
	}

	l.logger.Debug("Decision recorded",
		zap.String("opportunity_id", entry.OpportunityID),
		zap.Int("entries", len(entries)))
	return nil
}

func (l *JSONLog) load() ([]core.LogEntry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []core.LogEntry{}, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "read", Path: l.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []core.LogEntry{}, nil
	}

	var entries []core.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &core.PersistenceError{Op: "decode", Path: l.path, Err: err}
	}
	return entries, nil
}

func (l *JSONLog) write(entries []core.LogEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("failed to replace log file: %w", err)
	}
	return nil
}
