package reconcile

import (
	"context"
	"log"

	"golang.org/x/time/rate"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// LeaderFees reconciles per-epoch block-production fees. The primary path is
// the slow one: a leader schedule lookup plus one block query per assigned
// slot.
type LeaderFees struct {
	inner *epochReconciler[domain.EpochLeaderFees]
}

// NewLeaderFees wires the leader fee reconciler. Secondary, limiter, and
// logger are optional.
func NewLeaderFees(store storage.LeaderFeeStore, primary LeaderFeeSource, secondary LeaderFeeBackfill, limiter *rate.Limiter, logger *log.Logger) *LeaderFees {
	r := &epochReconciler[domain.EpochLeaderFees]{
		name:    "leader fees",
		store:   store,
		epochOf: func(f domain.EpochLeaderFees) uint64 { return f.Epoch },
		negative: func(epoch uint64) domain.EpochLeaderFees {
			return domain.EpochLeaderFees{Epoch: epoch, Date: domain.EpochDate(epoch)}
		},
		limiter: limiter,
		logger:  pickLogger(logger),
	}
	if primary != nil {
		r.fetchOne = primary.FetchLeaderFees
	}
	if secondary != nil {
		r.fetchBulk = secondary.FetchLeaderFees
	}
	return &LeaderFees{inner: r}
}

// Reconcile fills the store for [start, end] and returns the range's fees.
func (l *LeaderFees) Reconcile(ctx context.Context, start, end, current uint64, noCache bool) ([]domain.EpochLeaderFees, Counts, error) {
	return l.inner.run(ctx, start, end, current, noCache)
}
