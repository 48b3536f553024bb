package reconcile

import (
	"context"
	"fmt"
	"log"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// MevClaims reconciles per-epoch MEV commission. The provider returns every
// epoch it knows about in one call, and epochs with no MEV are simply absent
// from the response, so missing-epoch math does not apply: a cached claim
// near the end of the completed range means the cache is current and no call
// is made at all.
type MevClaims struct {
	store       storage.MevClaimStore
	source      ClaimsSource
	voteAccount string
	logger      *log.Logger
}

// NewMevClaims wires the MEV claim reconciler. Logger is optional.
func NewMevClaims(store storage.MevClaimStore, source ClaimsSource, voteAccount string, logger *log.Logger) *MevClaims {
	return &MevClaims{
		store:       store,
		source:      source,
		voteAccount: voteAccount,
		logger:      pickLogger(logger),
	}
}

// Reconcile returns the claims in [start, end], refreshing from the provider
// only when the cache has nothing near the end of the completed range.
func (m *MevClaims) Reconcile(ctx context.Context, start, end, current uint64, noCache bool) ([]domain.MevClaim, Counts, error) {
	plan := ResolvePlan(start, end, current)

	var counts Counts
	var claims []domain.MevClaim

	if plan.HasCompleted && !noCache {
		cached, err := m.store.GetRange(ctx, plan.Start, plan.CompletedEnd)
		if err != nil {
			return nil, counts, fmt.Errorf("read cached mev claims: %w", err)
		}
		counts.FromCache = len(cached)
		claims = cached
	}

	// Claims distribute at epoch boundaries, so a stored claim for the
	// last or next-to-last completed epoch means nothing newer can exist
	// yet.
	freshThrough := plan.CompletedEnd
	if freshThrough > 0 {
		freshThrough--
	}
	latest, haveLatest, err := m.store.LatestEpoch(ctx)
	if err != nil {
		return nil, counts, fmt.Errorf("read latest mev claim epoch: %w", err)
	}
	upToDate := haveLatest && latest >= freshThrough

	if !noCache && upToDate {
		return claims, counts, nil
	}

	m.logger.Printf("[reconcile] mev claims: fetching provider data through epoch %d", plan.CompletedEnd)
	fresh, err := m.source.FetchClaims(ctx, m.voteAccount)
	if err != nil {
		// The cached window is still a valid answer; every completed
		// epoch above the cached high-water mark stays undecided.
		m.logger.Printf("[reconcile] mev claims: provider fetch failed: %v", err)
		counts.StillMissing += unresolvedAbove(plan, latest, haveLatest)
		return claims, counts, nil
	}

	// Only completed epochs are written; the current epoch's claim can
	// still change.
	var completed []domain.MevClaim
	for _, c := range fresh {
		if c.Epoch < current {
			completed = append(completed, c)
		}
	}
	if len(completed) > 0 {
		if err := m.store.Upsert(ctx, completed); err != nil {
			return nil, counts, fmt.Errorf("store mev claims: %w", err)
		}
	}

	inFresh := make(map[uint64]bool, len(fresh))
	merged := make([]domain.MevClaim, 0, len(fresh)+len(claims))
	counts.Fetched = 0
	for _, c := range fresh {
		inFresh[c.Epoch] = true
		if c.Epoch >= start && c.Epoch <= end {
			merged = append(merged, c)
			counts.Fetched++
		}
	}

	// Old cached claims the provider has since dropped from its response
	// remain part of the answer.
	counts.FromCache = 0
	for _, c := range claims {
		if !inFresh[c.Epoch] {
			merged = append(merged, c)
			counts.FromCache++
		}
	}
	claims = merged

	sortByEpoch(claims, func(c domain.MevClaim) uint64 { return c.Epoch })
	return claims, counts, nil
}

// unresolvedAbove counts the completed epochs in the plan's range not yet
// covered by a stored claim decision.
func unresolvedAbove(plan Plan, latest uint64, haveLatest bool) int {
	if !plan.HasCompleted {
		return 0
	}
	from := plan.Start
	if haveLatest && latest+1 > from {
		from = latest + 1
	}
	if from > plan.CompletedEnd {
		return 0
	}
	return int(plan.CompletedEnd - from + 1)
}
