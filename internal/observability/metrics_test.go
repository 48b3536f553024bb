package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/grod220/validator-finances/internal/reconcile"
)

// NewMetrics registers on the default registry, so every test shares
// DefaultMetrics and asserts on deltas.

func TestObserver_ObserveScan(t *testing.T) {
	obs := NewObserver(DefaultMetrics)

	sigsBefore := testutil.ToFloat64(DefaultMetrics.SignaturesScanned)
	transfersBefore := testutil.ToFloat64(DefaultMetrics.TransfersExtracted)

	obs.ObserveScan("withdraw_authority", 150, 3, 389_232_100)

	if got := testutil.ToFloat64(DefaultMetrics.SignaturesScanned) - sigsBefore; got != 150 {
		t.Errorf("signatures scanned delta = %v, want 150", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.TransfersExtracted) - transfersBefore; got != 3 {
		t.Errorf("transfers extracted delta = %v, want 3", got)
	}
	cursor := DefaultMetrics.CursorSlot.WithLabelValues("withdraw_authority")
	if got := testutil.ToFloat64(cursor); got != 389_232_100 {
		t.Errorf("cursor slot = %v, want 389232100", got)
	}

	// A scan that saw nothing must not reset the cursor gauge.
	obs.ObserveScan("withdraw_authority", 0, 0, 0)
	if got := testutil.ToFloat64(cursor); got != 389_232_100 {
		t.Errorf("cursor slot after empty scan = %v, want 389232100", got)
	}
}

func TestObserver_ObserveCounts(t *testing.T) {
	obs := NewObserver(DefaultMetrics)

	fetched := DefaultMetrics.FactOutcomes.WithLabelValues("rewards", "fetched")
	before := testutil.ToFloat64(fetched)

	obs.ObserveCounts("rewards", reconcile.Counts{Fetched: 2, StillMissing: 1})

	if got := testutil.ToFloat64(fetched) - before; got != 2 {
		t.Errorf("fetched delta = %v, want 2", got)
	}
	incomplete := DefaultMetrics.PhaseRunsTotal.WithLabelValues("rewards", "incomplete")
	if got := testutil.ToFloat64(incomplete); got < 1 {
		t.Errorf("incomplete runs = %v, want at least 1", got)
	}
}
