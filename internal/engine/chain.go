package engine

import (
	"context"
	"fmt"
	"sync"
)

// ChainStore owns the "last invoice hash per seller" state. The engine
// computes and returns hashes, never stores chain state itself; the
// store must serialize updates per seller so two concurrently created
// notes cannot reference a stale or duplicate previous hash.
type ChainStore interface {
	// LastHash returns the current last hash for the seller, or ""
	// when the seller has no invoice history yet.
	LastHash(ctx context.Context, sellerID string) (string, error)

	// AdvanceHash atomically moves the seller's last hash from expected
	// to next. It fails when the current value is not expected.
	AdvanceHash(ctx context.Context, sellerID, expected, next string) error
}

// MemoryChainStore is an in-memory ChainStore for the CLI and tests,
// serializing updates with a single lock.
type MemoryChainStore struct {
	mu     sync.Mutex
	hashes map[string]string
}

// NewMemoryChainStore creates an empty in-memory chain store
func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{hashes: make(map[string]string)}
}

// LastHash implements ChainStore
func (s *MemoryChainStore) LastHash(_ context.Context, sellerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[sellerID], nil
}

// AdvanceHash implements ChainStore
func (s *MemoryChainStore) AdvanceHash(_ context.Context, sellerID, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.hashes[sellerID]
	if current != expected {
		return fmt.Errorf("stale chain state for seller %s: expected %q", sellerID, expected)
	}
	s.hashes[sellerID] = next
	return nil
}
