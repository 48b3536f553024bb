package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu sync.RWMutex
	// partition -> natural key -> transfer
	data map[string]map[domain.TransferKey]domain.Transfer
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]map[domain.TransferKey]domain.Transfer),
	}
}

// Upsert writes a batch under the given account key, replacing rows with the
// same natural key within that partition.
func (s *TransferStore) Upsert(_ context.Context, transfers []domain.Transfer, accountKey string) error {
	if accountKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.data[accountKey]
	if !ok {
		partition = make(map[domain.TransferKey]domain.Transfer)
		s.data[accountKey] = partition
	}

	for _, t := range transfers {
		partition[t.Key()] = t
	}

	return nil
}

// GetByAccount returns the stored transfers for one account key, ordered by slot.
func (s *TransferStore) GetByAccount(_ context.Context, accountKey string) ([]domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transfer
	for _, t := range s.data[accountKey] {
		result = append(result, t)
	}

	sortTransfers(result)
	return result, nil
}

// GetAll returns transfers across all partitions, de-duplicated by natural
// key and ordered by slot.
func (s *TransferStore) GetAll(_ context.Context) ([]domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.TransferKey]struct{})
	var result []domain.Transfer
	for _, partition := range s.data {
		for key, t := range partition {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, t)
		}
	}

	sortTransfers(result)
	return result, nil
}

// maxSlot returns the highest stored slot for an account key.
func (s *TransferStore) maxSlot(accountKey string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	var found bool
	for _, t := range s.data[accountKey] {
		if !found || t.Slot > max {
			max = t.Slot
			found = true
		}
	}

	return max, found
}

func sortTransfers(transfers []domain.Transfer) {
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].Slot != transfers[j].Slot {
			return transfers[i].Slot < transfers[j].Slot
		}
		return transfers[i].Signature < transfers[j].Signature
	})
}

var _ storage.TransferStore = (*TransferStore)(nil)
