package audit

import (
	"context"
	"database/sql"
	"errors"
	"log"
)

// Repository writes audit logs to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = normalize(entry)
	metadata := []byte(entry.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO admin_audit_logs (
	id, actor, role, action, resource_type, resource_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10,$11
)`, entry.ID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID,
		string(metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

// LogWriter writes audit entries as log lines.
type LogWriter struct {
	logger *log.Logger
}

// NewLogWriter constructs a LogWriter.
func NewLogWriter(logger *log.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

// Log prints the entry.
func (w *LogWriter) Log(_ context.Context, entry Entry) error {
	if w == nil || w.logger == nil {
		return nil
	}
	entry = normalize(entry)
	w.logger.Printf("audit %s: action=%s resource=%s/%s actor=%s role=%s ip=%s metadata=%s",
		entry.ID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Actor, entry.Role, entry.IP, string(entry.Metadata))
	return nil
}
