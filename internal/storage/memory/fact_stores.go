package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// epochStore holds epoch-keyed records behind a mutex. Upserts replace
// whole rows; reads copy out sorted slices.
type epochStore[T any] struct {
	mu      sync.RWMutex
	data    map[uint64]T
	epochOf func(T) uint64
}

func newEpochStore[T any](epochOf func(T) uint64) *epochStore[T] {
	return &epochStore[T]{
		data:    make(map[uint64]T),
		epochOf: epochOf,
	}
}

func (s *epochStore[T]) upsert(items []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		s.data[s.epochOf(item)] = item
	}
	return nil
}

func (s *epochStore[T]) getRange(start, end uint64) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for epoch, item := range s.data {
		if epoch >= start && epoch <= end {
			result = append(result, item)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return s.epochOf(result[i]) < s.epochOf(result[j])
	})

	return result, nil
}

func (s *epochStore[T]) missingEpochs(start, end uint64) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []uint64
	for epoch := start; epoch <= end; epoch++ {
		if _, exists := s.data[epoch]; !exists {
			missing = append(missing, epoch)
		}
	}

	return missing, nil
}

func (s *epochStore[T]) latestEpoch() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest uint64
	var found bool
	for epoch := range s.data {
		if !found || epoch > latest {
			latest = epoch
			found = true
		}
	}

	return latest, found
}

// RewardStore is an in-memory implementation of storage.RewardStore.
type RewardStore struct {
	*epochStore[domain.EpochReward]
}

// NewRewardStore creates a new in-memory reward store.
func NewRewardStore() *RewardStore {
	return &RewardStore{newEpochStore(func(r domain.EpochReward) uint64 { return r.Epoch })}
}

func (s *RewardStore) Upsert(_ context.Context, rewards []domain.EpochReward) error {
	return s.upsert(rewards)
}

func (s *RewardStore) GetRange(_ context.Context, start, end uint64) ([]domain.EpochReward, error) {
	return s.getRange(start, end)
}

func (s *RewardStore) MissingEpochs(_ context.Context, start, end uint64) ([]uint64, error) {
	return s.missingEpochs(start, end)
}

var _ storage.RewardStore = (*RewardStore)(nil)

// LeaderFeeStore is an in-memory implementation of storage.LeaderFeeStore.
type LeaderFeeStore struct {
	*epochStore[domain.EpochLeaderFees]
}

// NewLeaderFeeStore creates a new in-memory leader fee store.
func NewLeaderFeeStore() *LeaderFeeStore {
	return &LeaderFeeStore{newEpochStore(func(f domain.EpochLeaderFees) uint64 { return f.Epoch })}
}

func (s *LeaderFeeStore) Upsert(_ context.Context, fees []domain.EpochLeaderFees) error {
	return s.upsert(fees)
}

func (s *LeaderFeeStore) GetRange(_ context.Context, start, end uint64) ([]domain.EpochLeaderFees, error) {
	return s.getRange(start, end)
}

func (s *LeaderFeeStore) MissingEpochs(_ context.Context, start, end uint64) ([]uint64, error) {
	return s.missingEpochs(start, end)
}

var _ storage.LeaderFeeStore = (*LeaderFeeStore)(nil)

// MevClaimStore is an in-memory implementation of storage.MevClaimStore.
type MevClaimStore struct {
	*epochStore[domain.MevClaim]
}

// NewMevClaimStore creates a new in-memory MEV claim store.
func NewMevClaimStore() *MevClaimStore {
	return &MevClaimStore{newEpochStore(func(c domain.MevClaim) uint64 { return c.Epoch })}
}

func (s *MevClaimStore) Upsert(_ context.Context, claims []domain.MevClaim) error {
	return s.upsert(claims)
}

func (s *MevClaimStore) GetRange(_ context.Context, start, end uint64) ([]domain.MevClaim, error) {
	return s.getRange(start, end)
}

func (s *MevClaimStore) MissingEpochs(_ context.Context, start, end uint64) ([]uint64, error) {
	return s.missingEpochs(start, end)
}

func (s *MevClaimStore) LatestEpoch(_ context.Context) (uint64, bool, error) {
	epoch, ok := s.latestEpoch()
	return epoch, ok, nil
}

var _ storage.MevClaimStore = (*MevClaimStore)(nil)

// VoteCostStore is an in-memory implementation of storage.VoteCostStore.
type VoteCostStore struct {
	*epochStore[domain.EpochVoteCost]
}

// NewVoteCostStore creates a new in-memory vote cost store.
func NewVoteCostStore() *VoteCostStore {
	return &VoteCostStore{newEpochStore(func(c domain.EpochVoteCost) uint64 { return c.Epoch })}
}

func (s *VoteCostStore) Upsert(_ context.Context, costs []domain.EpochVoteCost) error {
	for _, c := range costs {
		if c.Source == domain.VoteCostEstimated {
			return storage.ErrInvalidInput
		}
	}
	return s.upsert(costs)
}

func (s *VoteCostStore) GetRange(_ context.Context, start, end uint64) ([]domain.EpochVoteCost, error) {
	return s.getRange(start, end)
}

func (s *VoteCostStore) MissingEpochs(_ context.Context, start, end uint64) ([]uint64, error) {
	return s.missingEpochs(start, end)
}

var _ storage.VoteCostStore = (*VoteCostStore)(nil)
