package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore implements Store in memory for development and tests.
// Thread-safe.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores a document in memory and returns its key.
func (s *MemoryStore) Put(_ context.Context, in PutInput) (string, error) {
	if err := ValidateContentType(in.ContentType); err != nil {
		return "", err
	}
	key, err := GenerateKey(in.ContentType, in.Prefix)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return "", fmt.Errorf("read document body: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: in.ContentType}
	return key, nil
}

// Open retrieves a stored document.
func (s *MemoryStore) Open(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

// SignedUploadURL is not meaningful without a real bucket; the memory store
// returns a placeholder URL carrying the generated key so handler flows
// still work in development.
func (s *MemoryStore) SignedUploadURL(_ context.Context, req SignedUploadRequest) (*SignedUploadResponse, error) {
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}
	key, err := GenerateKey(req.ContentType, req.Prefix)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{contentType: req.ContentType}
	s.mu.Unlock()

	return &SignedUploadResponse{
		URL:       "memory://" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}, nil
}

// SignedDownloadURL returns a placeholder URL for a stored document.
func (s *MemoryStore) SignedDownloadURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[key]; !ok {
		return "", ErrNotFound
	}
	return "memory://" + key, nil
}
