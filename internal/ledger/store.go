package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store errors.
var (
	// ErrNotFound is returned when no pending transaction matches a reference.
	ErrNotFound = errors.New("no pending transaction for reference")
	// ErrDuplicateReference is returned when a PENDING transaction with the
	// same reference already exists (duplicate gateway initiation guard).
	ErrDuplicateReference = errors.New("pending transaction with reference already exists")
	// ErrAlreadyFinal is returned when attempting to move a CONFIRMED or
	// CANCELLED transaction.
	ErrAlreadyFinal = errors.New("transaction already finalized")
)

// Store defines transaction ledger persistence.
type Store interface {
	// RecordPending creates a PENDING transaction. Fails with
	// ErrDuplicateReference if a PENDING transaction with the same
	// reference ID already exists.
	RecordPending(ctx context.Context, tx *Transaction) error

	// Confirm transitions the PENDING transaction matching referenceID to
	// CONFIRMED, stamping receipt details. A stale or unknown reference
	// returns ErrNotFound; an already-finalized one returns ErrAlreadyFinal.
	// At most one caller can win this transition.
	Confirm(ctx context.Context, referenceID, receiptNumber, paymentMethod string, paidAt time.Time) (*Transaction, error)

	// Cancel transitions the PENDING transaction matching referenceID to
	// CANCELLED.
	Cancel(ctx context.Context, referenceID string) (*Transaction, error)

	// FinalizeInternal creates a CONFIRMED transaction directly, with no
	// PENDING intermediate. Used when staff have already verified the
	// payment proof by hand.
	FinalizeInternal(ctx context.Context, tx *Transaction) (*Transaction, error)

	// GetByReference retrieves a transaction by reference ID regardless of
	// status.
	GetByReference(ctx context.Context, referenceID string) (*Transaction, error)

	// ListByEntity retrieves all transactions for an entity, oldest first.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*Transaction, error)
}

// MemoryStore implements Store with in-memory storage. Thread-safe.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]*Transaction // by ID
	// Insertion order for ListByEntity
	order []string
	now   func() time.Time
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs: make(map[string]*Transaction),
		now: time.Now,
	}
}

// RecordPending creates a PENDING transaction.
func (s *MemoryStore) RecordPending(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.txs {
		if existing.ReferenceID == tx.ReferenceID && existing.Status == StatusPending {
			return ErrDuplicateReference
		}
	}

	stored := *tx
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Status = StatusPending
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.txs[stored.ID] = &stored
	s.order = append(s.order, stored.ID)

	// Reflect generated fields back to the caller
	*tx = stored
	return nil
}

// Confirm transitions PENDING → CONFIRMED for the matching reference.
func (s *MemoryStore) Confirm(_ context.Context, referenceID, receiptNumber, paymentMethod string, paidAt time.Time) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.findByReferenceLocked(referenceID)
	if err != nil {
		return nil, err
	}
	if !isValidStatusTransition(target.Status, StatusConfirmed) {
		return nil, ErrAlreadyFinal
	}

	target.Status = StatusConfirmed
	target.ReceiptNumber = receiptNumber
	target.PaymentMethod = paymentMethod
	paid := paidAt.UTC()
	target.PaidAt = &paid
	target.UpdatedAt = s.now().UTC()

	txCopy := *target
	return &txCopy, nil
}

// Cancel transitions PENDING → CANCELLED for the matching reference.
func (s *MemoryStore) Cancel(_ context.Context, referenceID string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.findByReferenceLocked(referenceID)
	if err != nil {
		return nil, err
	}
	if !isValidStatusTransition(target.Status, StatusCancelled) {
		return nil, ErrAlreadyFinal
	}

	target.Status = StatusCancelled
	target.UpdatedAt = s.now().UTC()

	txCopy := *target
	return &txCopy, nil
}

// findByReferenceLocked prefers the PENDING transaction for a reference;
// when only finalized ones exist it returns the newest so callers can
// distinguish ErrAlreadyFinal from ErrNotFound.
func (s *MemoryStore) findByReferenceLocked(referenceID string) (*Transaction, error) {
	var finalized *Transaction
	for i := len(s.order) - 1; i >= 0; i-- {
		tx := s.txs[s.order[i]]
		if tx.ReferenceID != referenceID {
			continue
		}
		if tx.Status == StatusPending {
			return tx, nil
		}
		if finalized == nil {
			finalized = tx
		}
	}
	if finalized != nil {
		return finalized, nil
	}
	return nil, ErrNotFound
}

// FinalizeInternal creates a CONFIRMED transaction directly.
func (s *MemoryStore) FinalizeInternal(_ context.Context, tx *Transaction) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *tx
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Status = StatusConfirmed
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.PaidAt == nil {
		stored.PaidAt = &now
	}

	s.txs[stored.ID] = &stored
	s.order = append(s.order, stored.ID)

	txCopy := stored
	return &txCopy, nil
}

// GetByReference retrieves a transaction by reference ID.
func (s *MemoryStore) GetByReference(_ context.Context, referenceID string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.findByReferenceLocked(referenceID)
	if err != nil {
		return nil, err
	}
	txCopy := *tx
	return &txCopy, nil
}

// ListByEntity retrieves all transactions for an entity, oldest first.
func (s *MemoryStore) ListByEntity(_ context.Context, entityType, entityID string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Transaction
	for _, id := range s.order {
		tx := s.txs[id]
		if tx.EntityType == entityType && tx.EntityID == entityID {
			txCopy := *tx
			results = append(results, &txCopy)
		}
	}
	return results, nil
}
