// Package audit provides append-only audit logging for lifecycle
// transitions and payment movements. Entries are a write-only side effect
// of the core operations; the engine never reads them back, but staff can
// query an entity's history to review past remarks.
package audit

import (
	"time"
)

// Entry is a single immutable audit record.
type Entry struct {
	ID         string
	Actor      string // user ID of the identity that performed the action
	EntityType string // permit variant or "transaction"
	EntityID   string
	Action     string
	Details    string // free text: remarks, OR codes, amounts
	CreatedAt  time.Time

	// Optional request metadata
	RequestID string
	IPAddress string
	UserAgent string
}

// Record is the input for appending an audit entry.
type Record struct {
	Actor      string
	EntityType string
	EntityID   string
	Action     string
	Details    string

	RequestID string
	IPAddress string
	UserAgent string
}
