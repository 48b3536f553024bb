package memory

import (
	"context"
	"sync"

	"github.com/grod220/validator-finances/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]int64

	// Optional transfer store to fold in the highest stored transfer slot,
	// mirroring the durable backend's recovery behavior.
	transfers *TransferStore
}

// NewCursorStore creates a new in-memory cursor store. transfers may be nil.
func NewCursorStore(transfers *TransferStore) *CursorStore {
	return &CursorStore{
		cursors:   make(map[string]int64),
		transfers: transfers,
	}
}

// Get returns the cursor for an account key, folded with the highest stored
// transfer slot for that account.
func (s *CursorStore) Get(_ context.Context, accountKey string) (int64, bool, error) {
	if accountKey == "" {
		return 0, false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	cursor, ok := s.cursors[accountKey]
	s.mu.RUnlock()

	if s.transfers != nil {
		if slot, found := s.transfers.maxSlot(accountKey); found && (!ok || slot > cursor) {
			return slot, true, nil
		}
	}

	return cursor, ok, nil
}

// Advance moves the cursor forward, never backward.
func (s *CursorStore) Advance(_ context.Context, accountKey string, slot int64) error {
	if accountKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.cursors[accountKey]; !ok || slot > current {
		s.cursors[accountKey] = slot
	}

	return nil
}

var _ storage.CursorStore = (*CursorStore)(nil)
