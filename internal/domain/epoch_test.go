package domain

import (
	"testing"
	"time"
)

func TestEpochDate(t *testing.T) {
	tests := []struct {
		epoch uint64
		want  string
	}{
		{896, "2025-12-16"},
		{897, "2025-12-18"},
		{895, "2025-12-14"},
		{900, "2025-12-24"},
	}

	for _, tt := range tests {
		if got := EpochDate(tt.epoch); got != tt.want {
			t.Errorf("EpochDate(%d) = %s, want %s", tt.epoch, got, tt.want)
		}
	}
}

func TestEpochForTime_RoundTrip(t *testing.T) {
	for _, epoch := range []uint64{890, 896, 900, 1000} {
		start := EpochStartTime(epoch)

		if got := EpochForTime(start); got != epoch {
			t.Errorf("EpochForTime(start of %d) = %d", epoch, got)
		}

		// A point inside the epoch still maps to it.
		mid := start.Add(EpochDuration / 2)
		if got := EpochForTime(mid); got != epoch {
			t.Errorf("EpochForTime(mid of %d) = %d", epoch, got)
		}
	}
}

func TestEpochForTime_BeforeReference(t *testing.T) {
	// One second before the reference boundary falls into the prior epoch.
	before := time.Unix(ReferenceEpochUnix-1, 0).UTC()
	if got := EpochForTime(before); got != ReferenceEpoch-1 {
		t.Errorf("EpochForTime = %d, want %d", got, ReferenceEpoch-1)
	}
}

func TestSlotEpochMapping(t *testing.T) {
	if got := FirstSlot(900); got != 900*SlotsPerEpoch {
		t.Errorf("FirstSlot(900) = %d", got)
	}

	if got := EpochForSlot(FirstSlot(900)); got != 900 {
		t.Errorf("EpochForSlot(first slot) = %d", got)
	}

	if got := EpochForSlot(FirstSlot(901) - 1); got != 900 {
		t.Errorf("EpochForSlot(last slot of 900) = %d", got)
	}
}

func TestLamportsToSol(t *testing.T) {
	if got := LamportsToSol(1_500_000_000); got != 1.5 {
		t.Errorf("LamportsToSol = %f", got)
	}
}
