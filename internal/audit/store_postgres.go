package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL. The audit_logs
// table has no UPDATE or DELETE path; entries are append-only.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed audit repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append records an event to the audit log.
func (r *PostgresRepository) Append(rec Record) (*Entry, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		Actor:      rec.Actor,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Details:    rec.Details,
		CreatedAt:  time.Now().UTC(),
		RequestID:  rec.RequestID,
		IPAddress:  rec.IPAddress,
		UserAgent:  rec.UserAgent,
	}

	const q = `
		INSERT INTO audit_logs
			(id, actor, entity_type, entity_id, action, details, request_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.Exec(q,
		entry.ID, entry.Actor, entry.EntityType, entry.EntityID, entry.Action,
		entry.Details, entry.RequestID, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// QueryByEntity retrieves audit entries for a specific entity, newest first.
func (r *PostgresRepository) QueryByEntity(entityType, entityID string, limit int) ([]*Entry, error) {
	const q = `
		SELECT id, actor, entity_type, entity_id, action, details, request_id, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT CASE WHEN $3 > 0 THEN $3 ELSE NULL END
	`
	rows, err := r.db.Query(q, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs by entity: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// QueryByActor retrieves audit entries for a specific actor, newest first.
func (r *PostgresRepository) QueryByActor(actor string, limit int) ([]*Entry, error) {
	const q = `
		SELECT id, actor, entity_type, entity_id, action, details, request_id, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE actor = $1
		ORDER BY created_at DESC
		LIMIT CASE WHEN $2 > 0 THEN $2 ELSE NULL END
	`
	rows, err := r.db.Query(q, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs by actor: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var results []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.Actor, &e.EntityType, &e.EntityID, &e.Action,
			&e.Details, &e.RequestID, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		results = append(results, &e)
	}
	return results, rows.Err()
}
