package storage

import (
	"context"

	"github.com/grod220/validator-finances/internal/domain"
)

// RewardStore provides access to per-epoch staking reward records.
//
// All epoch-keyed stores share the same contract: Upsert writes a batch
// atomically, replacing any existing rows for the same epochs; GetRange reads
// the inclusive [start, end] window ordered by epoch; MissingEpochs returns
// the epochs in the window with no stored row at all. A stored zero-valued
// row counts as present (checked, confirmed empty).
type RewardStore interface {
	Upsert(ctx context.Context, rewards []domain.EpochReward) error
	GetRange(ctx context.Context, start, end uint64) ([]domain.EpochReward, error)
	MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error)
}

// LeaderFeeStore provides access to per-epoch block-production fee records.
type LeaderFeeStore interface {
	Upsert(ctx context.Context, fees []domain.EpochLeaderFees) error
	GetRange(ctx context.Context, start, end uint64) ([]domain.EpochLeaderFees, error)
	MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error)
}

// MevClaimStore provides access to per-epoch MEV commission records.
type MevClaimStore interface {
	Upsert(ctx context.Context, claims []domain.MevClaim) error
	GetRange(ctx context.Context, start, end uint64) ([]domain.MevClaim, error)
	MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error)

	// LatestEpoch returns the highest epoch with a stored claim, or ok=false
	// when the table is empty.
	LatestEpoch(ctx context.Context) (epoch uint64, ok bool, err error)
}

// VoteCostStore provides access to per-epoch vote cost records. Only rows
// sourced from an upstream provider are stored; estimates are recomputed per
// run and never written.
type VoteCostStore interface {
	Upsert(ctx context.Context, costs []domain.EpochVoteCost) error
	GetRange(ctx context.Context, start, end uint64) ([]domain.EpochVoteCost, error)
	MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error)
}

// TransferStore provides access to SOL transfer records, partitioned by the
// account key whose scan produced them.
type TransferStore interface {
	// Upsert writes a batch atomically under the given account key,
	// replacing rows that share the natural key (signature, from, to,
	// amount) within that partition.
	Upsert(ctx context.Context, transfers []domain.Transfer, accountKey string) error

	// GetByAccount returns the stored transfers for one account key.
	GetByAccount(ctx context.Context, accountKey string) ([]domain.Transfer, error)

	// GetAll returns transfers across all partitions, de-duplicated by
	// natural key and ordered by slot.
	GetAll(ctx context.Context) ([]domain.Transfer, error)
}

// CursorStore tracks the per-account scan high-water mark. Get folds in the
// highest stored transfer slot for the account, so a lost cursor row recovers
// from the transfer data itself.
type CursorStore interface {
	Get(ctx context.Context, accountKey string) (slot int64, ok bool, err error)

	// Advance moves the cursor forward. A slot at or below the current
	// cursor is a no-op; the cursor never moves backward.
	Advance(ctx context.Context, accountKey string, slot int64) error
}

// Stores bundles every store the reconciliation run needs.
type Stores struct {
	Rewards    RewardStore
	LeaderFees LeaderFeeStore
	MevClaims  MevClaimStore
	VoteCosts  VoteCostStore
	Transfers  TransferStore
	Cursors    CursorStore
}
