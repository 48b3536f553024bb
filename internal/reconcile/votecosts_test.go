package reconcile

import (
	"context"
	"testing"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage/memory"
)

type fakeVoteCostBackfill struct {
	calls     int
	startDate string
	rows      []domain.EpochVoteCost
	err       error
}

func (f *fakeVoteCostBackfill) FetchVoteCosts(_ context.Context, startDate string) ([]domain.EpochVoteCost, error) {
	f.calls++
	f.startDate = startDate
	return f.rows, f.err
}

func TestVoteCosts_EstimatesFillWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVoteCostStore()

	v := NewVoteCosts(store, nil, nil)

	costs, counts, err := v.Reconcile(ctx, 900, 903, 904, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(costs) != 4 || counts.Estimated != 4 {
		t.Fatalf("costs = %+v, counts = %+v, want 4 estimates", costs, counts)
	}
	for _, c := range costs {
		if c.Source != domain.VoteCostEstimated {
			t.Errorf("epoch %d source = %s, want estimated", c.Epoch, c.Source)
		}
		if c.CostLamports != domain.VoteFeeLamports*domain.VotesPerEpoch {
			t.Errorf("epoch %d cost = %d", c.Epoch, c.CostLamports)
		}
	}

	// Estimates are per-run only; the store still reports the epochs
	// unchecked.
	missing, err := store.MissingEpochs(ctx, 900, 903)
	if err != nil {
		t.Fatalf("MissingEpochs: %v", err)
	}
	if len(missing) != 4 {
		t.Errorf("missing = %v, want all four epochs", missing)
	}
}

func TestVoteCosts_SecondaryFillsThenEstimatesRemainder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewVoteCostStore()
	backfill := &fakeVoteCostBackfill{rows: []domain.EpochVoteCost{
		{Epoch: 900, CostLamports: 2_100_000_000, Source: domain.VoteCostDune},
		{Epoch: 901, CostLamports: 2_200_000_000, Source: domain.VoteCostDune},
	}}

	v := NewVoteCosts(store, backfill, nil)

	costs, counts, err := v.Reconcile(ctx, 900, 904, 904, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	// 900-901 from the bulk source, 902-903 negative-cached by its
	// omission, 904 (current) estimated.
	if counts.Fetched != 2 || counts.NegativeCached != 2 || counts.Estimated != 1 {
		t.Fatalf("counts = %+v", counts)
	}
	if len(costs) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(costs))
	}
	if costs[4].Epoch != 904 || costs[4].Source != domain.VoteCostEstimated {
		t.Errorf("current epoch row = %+v, want estimated", costs[4])
	}
	if costs[2].CostLamports != 0 || costs[2].Source != domain.VoteCostDune {
		t.Errorf("negative row = %+v, want zero-valued dune row", costs[2])
	}

	stored, err := store.GetRange(ctx, 900, 904)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(stored) != 4 {
		t.Errorf("stored %d rows, want 4 (estimate never persisted)", len(stored))
	}
}
