package permit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	// ErrRequestNotFound is returned when no request matches the variant
	// and ID.
	ErrRequestNotFound = errors.New("permit request not found")
	// ErrVersionConflict is returned when an update carries a stale
	// version: a concurrent transition won the race.
	ErrVersionConflict = errors.New("permit request was modified concurrently")
)

// Repository defines permit request persistence. Update applies an
// optimistic version check so racing transitions resolve to exactly one
// winner.
type Repository interface {
	// Create stores a new request, assigning ID, Version and timestamps.
	Create(ctx context.Context, req *Request) error

	// Get retrieves a request by variant and ID.
	Get(ctx context.Context, variant Variant, id string) (*Request, error)

	// Update persists req if and only if the stored version equals
	// req.Version, then increments it. A stale version returns
	// ErrVersionConflict.
	Update(ctx context.Context, req *Request) error

	// ListByStatus returns all requests of a variant in the given status,
	// oldest first. The staff verification queue.
	ListByStatus(ctx context.Context, variant Variant, status Status) ([]*Request, error)

	// ListByOwner returns all requests submitted by a user, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Request, error)
}

type requestKey struct {
	variant Variant
	id      string
}

// MemoryRepository implements Repository with in-memory storage.
// Thread-safe.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[requestKey]*Request
	order    []requestKey
	now      func() time.Time
}

// NewMemoryRepository creates a new in-memory permit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		requests: make(map[requestKey]*Request),
		now:      time.Now,
	}
}

// Create stores a new request.
func (r *MemoryRepository) Create(_ context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := r.now().UTC()
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now

	key := requestKey{variant: req.Variant, id: req.ID}
	r.requests[key] = req.clone()
	r.order = append(r.order, key)
	return nil
}

// Get retrieves a request by variant and ID.
func (r *MemoryRepository) Get(_ context.Context, variant Variant, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[requestKey{variant: variant, id: id}]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return req.clone(), nil
}

// Update persists req under an optimistic version check.
func (r *MemoryRepository) Update(_ context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestKey{variant: req.Variant, id: req.ID}
	stored, ok := r.requests[key]
	if !ok {
		return ErrRequestNotFound
	}
	if stored.Version != req.Version {
		return ErrVersionConflict
	}

	req.Version++
	req.UpdatedAt = r.now().UTC()
	r.requests[key] = req.clone()
	return nil
}

// ListByStatus returns requests of a variant in the given status, oldest
// first.
func (r *MemoryRepository) ListByStatus(_ context.Context, variant Variant, status Status) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Request
	for _, key := range r.order {
		req := r.requests[key]
		if req.Variant == variant && req.Status == status {
			results = append(results, req.clone())
		}
	}
	return results, nil
}

// ListByOwner returns a user's requests, newest first.
func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Request
	for i := len(r.order) - 1; i >= 0; i-- {
		req := r.requests[r.order[i]]
		if req.OwnerID == ownerID {
			results = append(results, req.clone())
		}
	}
	return results, nil
}
