package reconcile

import (
	"context"
	"log"

	"golang.org/x/time/rate"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// Rewards reconciles per-epoch staking-commission rewards.
type Rewards struct {
	inner *epochReconciler[domain.EpochReward]
}

// NewRewards wires the reward reconciler. Secondary, limiter, and logger are
// optional.
func NewRewards(store storage.RewardStore, primary RewardSource, secondary RewardBackfill, limiter *rate.Limiter, logger *log.Logger) *Rewards {
	r := &epochReconciler[domain.EpochReward]{
		name:    "rewards",
		store:   store,
		epochOf: func(f domain.EpochReward) uint64 { return f.Epoch },
		negative: func(epoch uint64) domain.EpochReward {
			return domain.EpochReward{Epoch: epoch, Date: domain.EpochDate(epoch)}
		},
		limiter: limiter,
		logger:  pickLogger(logger),
	}
	if primary != nil {
		r.fetchOne = primary.FetchReward
	}
	if secondary != nil {
		r.fetchBulk = secondary.FetchInflationRewards
	}
	return &Rewards{inner: r}
}

// Reconcile fills the store for [start, end] and returns the range's rewards,
// including a live (unpersisted) figure for the current epoch when requested.
func (r *Rewards) Reconcile(ctx context.Context, start, end, current uint64, noCache bool) ([]domain.EpochReward, Counts, error) {
	return r.inner.run(ctx, start, end, current, noCache)
}
