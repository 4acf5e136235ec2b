// Package audit implements the durable, queryable audit log of spec §4.8
// step 9 / §3's AuditEvent. Unlike the teacher's per-aggregate JSON
// files (pkg/infrastructure/persistence/repositories.go), this one
// piece of state is backed by SQLite (github.com/mattn/go-sqlite3) so
// operators can run time-range queries by session or correlation id —
// the audit trail is the one component whose value is in being queried,
// not just replayed.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/docflow/docflow/internal/domain"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS audit_events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	schema_version INTEGER NOT NULL,
	event_type     TEXT NOT NULL,
	action         TEXT NOT NULL,
	status         TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	correlation_id TEXT,
	actor          TEXT,
	source         TEXT,
	metadata       TEXT,
	recorded_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events(session_id);
CREATE INDEX IF NOT EXISTS idx_audit_correlation ON audit_events(correlation_id);
CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_events(recorded_at);
`

// Store is a durable, queryable sink for AuditEvent records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed audit store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, dbErr("failed to open audit database", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, dbErr("failed to initialize audit schema", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record appends an AuditEvent, never blocking the caller's command
// pipeline on a slow disk for long: callers needing fire-and-forget
// semantics should invoke this from a background goroutine (see
// internal/agent's audit step).
func (s *Store) Record(ctx context.Context, evt domain.AuditEvent) error {
	metadata, err := json.Marshal(evt.Metadata)
	if err != nil {
		return dbErr("failed to marshal audit metadata", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(schema_version, event_type, action, status, session_id, correlation_id, actor, source, metadata, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.SchemaVersion, evt.EventType, evt.Action, string(evt.Status), string(evt.SessionID),
		string(evt.CorrelationID), evt.Actor, evt.Source, string(metadata), evt.RecordedAt.UTC(),
	)
	if err != nil {
		return dbErr("failed to record audit event", err)
	}
	return nil
}

// Query filters define a time-range / identity lookup over the log.
type Query struct {
	SessionID     domain.SessionID
	CorrelationID domain.CorrelationID
	Since         time.Time
	Until         time.Time
	Limit         int
}

// Find runs q against the audit log, newest first.
func (s *Store) Find(ctx context.Context, q Query) ([]domain.AuditEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_version, event_type, action, status, session_id, correlation_id, actor, source, metadata, recorded_at
		FROM audit_events
		WHERE (? = '' OR session_id = ?)
		  AND (? = '' OR correlation_id = ?)
		  AND (? IS NULL OR recorded_at >= ?)
		  AND (? IS NULL OR recorded_at <= ?)
		ORDER BY recorded_at DESC
		LIMIT ?`,
		string(q.SessionID), string(q.SessionID),
		string(q.CorrelationID), string(q.CorrelationID),
		nullableTime(q.Since), nullableTime(q.Since),
		nullableTime(q.Until), nullableTime(q.Until),
		limit,
	)
	if err != nil {
		return nil, dbErr("failed to query audit events", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var evt domain.AuditEvent
		var status, sessionID, correlationID, metadata string
		var recordedAt time.Time
		if err := rows.Scan(&evt.SchemaVersion, &evt.EventType, &evt.Action, &status, &sessionID,
			&correlationID, &evt.Actor, &evt.Source, &metadata, &recordedAt); err != nil {
			return nil, dbErr("failed to scan audit event", err)
		}
		evt.Status = domain.AuditStatus(status)
		evt.SessionID = domain.SessionID(sessionID)
		evt.CorrelationID = domain.CorrelationID(correlationID)
		evt.RecordedAt = domain.TimestampFrom(recordedAt)
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &evt.Metadata)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func dbErr(msg string, cause error) error {
	return domain.NewError(domain.ErrFilesystem, msg).WithDetail("cause", cause.Error())
}
