package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS decision_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL,
		opportunity_id TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL DEFAULT '',
		pertinence INTEGER NOT NULL,
		decision TEXT NOT NULL,
		action_taken TEXT NOT NULL,
		reasons TEXT NOT NULL,
		attention_points TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT ''
	)
`

const mysqlSchema = `
	CREATE TABLE IF NOT EXISTS decision_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		recorded_at VARCHAR(40) NOT NULL,
		opportunity_id VARCHAR(255) NOT NULL,
		message_id VARCHAR(998) NOT NULL DEFAULT '',
		subject TEXT NOT NULL,
		sender VARCHAR(512) NOT NULL DEFAULT '',
		pertinence INT NOT NULL,
		decision VARCHAR(16) NOT NULL,
		action_taken VARCHAR(16) NOT NULL,
		reasons TEXT NOT NULL,
		attention_points TEXT NOT NULL,
		provider VARCHAR(64) NOT NULL DEFAULT '',
		INDEX idx_opportunity_id (opportunity_id)
	) CHARACTER SET utf8mb4
`

// SQLLog is an append-only decision log backed by a SQL table. Each
// append is a single INSERT, so several writers can share the store.
type SQLLog struct {
	db     *sql.DB
	name   string
	logger *zap.Logger
}

// NewSQLiteLog opens or creates a SQLite decision log
func NewSQLiteLog(dbPath string, logger *zap.Logger) (*SQLLog, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSQLLog(db, dbPath, sqliteSchema, logger)
}

// NewMySQLLog opens a MySQL decision log, creating the table if needed
func NewMySQLLog(dsn string, logger *zap.Logger) (*SQLLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}
	return newSQLLog(db, "mysql", mysqlSchema, logger)
}

func newSQLLog(db *sql.DB, name, schema string, logger *zap.Logger) (*SQLLog, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SQLLog{
		db:     db,
		name:   name,
		logger: logger,
	}, nil
}

// Append inserts the entry
func (l *SQLLog) Append(ctx context.Context, entry core.LogEntry) error {
	reasons, err := json.Marshal(nonNil(entry.Reasons))
	if err != nil {
		return &core.PersistenceError{Op: "encode", Path: l.name, Err: err}
	}
	points, err := json.Marshal(nonNil(entry.AttentionPoints))
	if err != nil {
		return &core.PersistenceError{Op: "encode", Path: l.name, Err: err}
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO decision_log (recorded_at, opportunity_id, message_id, subject, sender,
			pertinence, decision, action_taken, reasons, attention_points, provider)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Timestamp.Format(time.RFC3339Nano), entry.OpportunityID, entry.MessageID, entry.Subject,
		entry.Sender, entry.Pertinence, string(entry.Decision), string(entry.Action),
		string(reasons), string(points), entry.Provider)
	if err != nil {
		return &core.PersistenceError{Op: "insert", Path: l.name, Err: err}
	}
	return nil
}

// Load returns every entry in insertion order
func (l *SQLLog) Load(ctx context.Context) ([]core.LogEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT recorded_at, opportunity_id, message_id, subject, sender,
			pertinence, decision, action_taken, reasons, attention_points, provider
		FROM decision_log
		ORDER BY id
	`)
	if err != nil {
		return nil, &core.PersistenceError{Op: "query", Path: l.name, Err: err}
	}
	defer rows.Close()

	entries := []core.LogEntry{}
	for rows.Next() {
		var (
			e                      core.LogEntry
			recordedAt             string
			decision, action       string
			reasons, attentionJSON string
		)
		if err := rows.Scan(&recordedAt, &e.OpportunityID, &e.MessageID, &e.Subject, &e.Sender,
			&e.Pertinence, &decision, &action, &reasons, &attentionJSON, &e.Provider); err != nil {
			return nil, &core.PersistenceError{Op: "scan", Path: l.name, Err: err}
		}

		if e.Timestamp, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			l.logger.Warn("Failed to parse recorded_at timestamp",
				zap.String("opportunity_id", e.OpportunityID),
				zap.Error(err))
		}
		e.Decision = core.Decision(decision)
		e.Action = core.Action(action)
		if err := json.Unmarshal([]byte(reasons), &e.Reasons); err != nil {
			return nil, &core.PersistenceError{Op: "decode", Path: l.name, Err: err}
		}
		if err := json.Unmarshal([]byte(attentionJSON), &e.AttentionPoints); err != nil {
			return nil, &core.PersistenceError{Op: "decode", Path: l.name, Err: err}
		}
		if len(e.AttentionPoints) == 0 {
			e.AttentionPoints = nil
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.PersistenceError{Op: "query", Path: l.name, Err: err}
	}
	return entries, nil
}

// Close closes the database connection
func (l *SQLLog) Close() error {
	return l.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
