package reconcile

import (
	"context"
	"log"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// VoteCosts reconciles per-epoch vote transaction fee spend. There is no
// per-epoch primary source: authoritative rows come from the secondary bulk
// query or a prior import, and anything still missing is filled with a tagged
// estimate in the returned results only.
type VoteCosts struct {
	inner *epochReconciler[domain.EpochVoteCost]
}

// NewVoteCosts wires the vote cost reconciler. Secondary and logger are
// optional.
func NewVoteCosts(store storage.VoteCostStore, secondary VoteCostBackfill, logger *log.Logger) *VoteCosts {
	r := &epochReconciler[domain.EpochVoteCost]{
		name:    "vote costs",
		store:   store,
		epochOf: func(f domain.EpochVoteCost) uint64 { return f.Epoch },
		negative: func(epoch uint64) domain.EpochVoteCost {
			// Zero-valued but provider-confirmed, so it carries the
			// secondary source tag rather than "estimated".
			return domain.EpochVoteCost{Epoch: epoch, Source: domain.VoteCostDune, Date: domain.EpochDate(epoch)}
		},
		logger: pickLogger(logger),
	}
	if secondary != nil {
		r.fetchBulk = secondary.FetchVoteCosts
	}
	return &VoteCosts{inner: r}
}

// Reconcile fills the store for [start, end], then fills any epoch still
// unresolved, current epoch included, with the per-epoch estimate. Estimated
// rows appear only in the returned slice and are never persisted.
func (v *VoteCosts) Reconcile(ctx context.Context, start, end, current uint64, noCache bool) ([]domain.EpochVoteCost, Counts, error) {
	costs, counts, err := v.inner.run(ctx, start, end, current, noCache)
	if err != nil {
		return nil, counts, err
	}

	known := make(map[uint64]bool, len(costs))
	for _, c := range costs {
		known[c.Epoch] = true
	}

	for epoch := start; epoch <= end; epoch++ {
		if known[epoch] {
			continue
		}
		costs = append(costs, domain.EstimatedVoteCost(epoch))
		counts.Estimated++
	}
	sortByEpoch(costs, func(c domain.EpochVoteCost) uint64 { return c.Epoch })

	return costs, counts, nil
}
