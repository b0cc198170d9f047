package audit

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Validation errors for audit records.
var (
	ErrNilRepository     = errors.New("audit repository cannot be nil")
	ErrInvalidEntityType = errors.New("entity type cannot be empty")
	ErrInvalidEntityID   = errors.New("entity ID cannot be empty")
	ErrInvalidAction     = errors.New("action cannot be empty")
)

// ValidEntityTypes defines the allowed entity types for audit logging.
var ValidEntityTypes = map[string]bool{
	"death_registration": true,
	"burial_permit":      true,
	"cremation_permit":   true,
	"exhumation_permit":  true,
	"death_certificate":  true,
	"transaction":        true,
	"document":           true,
}

// ValidActions defines the allowed actions for audit logging.
var ValidActions = map[string]bool{
	"submit":           true,
	"resubmit":         true,
	"approve":          true,
	"return":           true,
	"reject":           true,
	"submit_payment":   true,
	"confirm_payment":  true,
	"reject_payment":   true,
	"initiate_payment": true,
	"override_fees":    true,
	"gateway_callback": true,
	"view_history":     true,
	"retrieve":         true,
}

func validate(rec Record) error {
	if rec.EntityType == "" {
		return ErrInvalidEntityType
	}
	if rec.EntityID == "" {
		return ErrInvalidEntityID
	}
	if rec.Action == "" {
		return ErrInvalidAction
	}
	if !ValidEntityTypes[rec.EntityType] {
		return ErrInvalidEntityType
	}
	if !ValidActions[rec.Action] {
		return ErrInvalidAction
	}
	return nil
}

// Repository defines the interface for audit log operations.
type Repository interface {
	// Append records an event to the audit log and returns the created entry.
	Append(rec Record) (*Entry, error)

	// QueryByEntity retrieves audit entries for a specific entity, newest
	// first. Limit caps the number of entries (0 = no limit).
	QueryByEntity(entityType, entityID string, limit int) ([]*Entry, error)

	// QueryByActor retrieves audit entries for a specific actor, newest
	// first. Limit caps the number of entries (0 = no limit).
	QueryByActor(actor string, limit int) ([]*Entry, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	// Insertion order for newest-first queries
	order []string
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]*Entry),
		order:   make([]string, 0),
	}
}

// Append records an event to the audit log.
func (r *InMemoryRepository) Append(rec Record) (*Entry, error) {
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

	r.mu.Lock()
	r.entries[entry.ID] = entry
	r.order = append(r.order, entry.ID)
	r.mu.Unlock()

	// Return a copy to prevent external modification
	entryCopy := *entry
	return &entryCopy, nil
}

// QueryByEntity retrieves audit entries for a specific entity, newest first.
func (r *InMemoryRepository) QueryByEntity(entityType, entityID string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for i := len(r.order) - 1; i >= 0; i-- {
		entry := r.entries[r.order[i]]
		if entry.EntityType == entityType && entry.EntityID == entityID {
			entryCopy := *entry
			results = append(results, &entryCopy)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// QueryByActor retrieves audit entries for a specific actor, newest first.
func (r *InMemoryRepository) QueryByActor(actor string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for i := len(r.order) - 1; i >= 0; i-- {
		entry := r.entries[r.order[i]]
		if entry.Actor == actor {
			entryCopy := *entry
			results = append(results, &entryCopy)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}
