package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage/memory"
)

type fakeClaimsSource struct {
	calls  int
	claims []domain.MevClaim
	err    error
}

func (f *fakeClaimsSource) FetchClaims(_ context.Context, _ string) ([]domain.MevClaim, error) {
	f.calls++
	return f.claims, f.err
}

func TestMevClaims_RecentCacheSkipsProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMevClaimStore()
	seed := []domain.MevClaim{
		{Epoch: 901, CommissionLamports: 5},
		{Epoch: 902, CommissionLamports: 6},
	}
	if err := store.Upsert(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	source := &fakeClaimsSource{}
	m := NewMevClaims(store, source, "voteAcct", nil)

	// completedEnd 903, so a stored claim at 902 means up to date.
	claims, counts, err := m.Reconcile(ctx, 900, 903, 904, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if source.calls != 0 {
		t.Errorf("expected no provider call, got %d", source.calls)
	}
	if len(claims) != 2 || counts.FromCache != 2 {
		t.Errorf("claims = %+v, counts = %+v", claims, counts)
	}
}

func TestMevClaims_StaleCacheRefetchesAndStoresCompleted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMevClaimStore()
	if err := store.Upsert(ctx, []domain.MevClaim{{Epoch: 898, CommissionLamports: 4}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	source := &fakeClaimsSource{claims: []domain.MevClaim{
		{Epoch: 898, CommissionLamports: 4},
		{Epoch: 901, CommissionLamports: 5},
		{Epoch: 903, CommissionLamports: 7},
		{Epoch: 904, CommissionLamports: 9}, // current epoch, volatile
	}}
	m := NewMevClaims(store, source, "voteAcct", nil)

	claims, counts, err := m.Reconcile(ctx, 900, 903, 904, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if source.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", source.calls)
	}
	if len(claims) != 2 || claims[0].Epoch != 901 || claims[1].Epoch != 903 {
		t.Errorf("claims = %+v, want epochs 901 and 903", claims)
	}
	if counts.Fetched != 2 {
		t.Errorf("counts = %+v, want 2 fetched", counts)
	}

	// Only completed epochs were persisted.
	stored, err := store.GetRange(ctx, 904, 904)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("current epoch claim was persisted: %+v", stored)
	}
	latest, ok, err := store.LatestEpoch(ctx)
	if err != nil || !ok || latest != 903 {
		t.Errorf("latest = %d ok=%v err=%v, want 903", latest, ok, err)
	}
}

func TestMevClaims_ProviderFailureKeepsCachedWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMevClaimStore()
	if err := store.Upsert(ctx, []domain.MevClaim{{Epoch: 900, CommissionLamports: 5}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	source := &fakeClaimsSource{err: errors.New("api down")}
	m := NewMevClaims(store, source, "voteAcct", nil)

	claims, counts, err := m.Reconcile(ctx, 900, 903, 904, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(claims) != 1 || claims[0].Epoch != 900 {
		t.Errorf("claims = %+v, want the cached row", claims)
	}
	if counts.StillMissing != 3 {
		t.Errorf("counts = %+v, want the 3 unresolved epochs above the stored high-water mark reported", counts)
	}
}

func TestMevClaims_RefetchKeepsCachedClaimsDroppedByProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMevClaimStore()
	if err := store.Upsert(ctx, []domain.MevClaim{{Epoch: 900, CommissionLamports: 5}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The provider's response window has rolled past epoch 900.
	source := &fakeClaimsSource{claims: []domain.MevClaim{
		{Epoch: 903, CommissionLamports: 7},
	}}
	m := NewMevClaims(store, source, "voteAcct", nil)

	claims, counts, err := m.Reconcile(ctx, 900, 903, 904, false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(claims) != 2 || claims[0].Epoch != 900 || claims[1].Epoch != 903 {
		t.Errorf("claims = %+v, want the cached 900 and the fresh 903", claims)
	}
	if counts.FromCache != 1 || counts.Fetched != 1 {
		t.Errorf("counts = %+v, want 1 cached and 1 fetched", counts)
	}
}
