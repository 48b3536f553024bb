package domain

import "time"

// Epoch timing calibration. Solana epochs are 432,000 slots; at ~400ms per
// slot an epoch spans roughly two days. Calibrated against epoch 896, which
// began 2025-12-16 00:00:00 UTC.
const (
	SlotsPerEpoch = 432_000

	ReferenceEpoch     uint64 = 896
	ReferenceEpochUnix int64  = 1_765_843_200

	EpochDuration = 172_800 * time.Second
)

// Lamport conversion.
const (
	LamportsPerSol = 1_000_000_000

	// MinTransferLamports filters dust below 0.001 SOL.
	MinTransferLamports uint64 = 1_000_000
)

// EpochStartTime returns the approximate UTC start of an epoch.
func EpochStartTime(epoch uint64) time.Time {
	delta := int64(epoch) - int64(ReferenceEpoch)
	return time.Unix(ReferenceEpochUnix, 0).UTC().Add(time.Duration(delta) * EpochDuration)
}

// EpochDate returns the epoch's approximate start date as YYYY-MM-DD.
func EpochDate(epoch uint64) string {
	return EpochStartTime(epoch).Format("2006-01-02")
}

// EpochForTime returns the epoch containing t.
func EpochForTime(t time.Time) uint64 {
	delta := t.Unix() - ReferenceEpochUnix
	epoch := int64(ReferenceEpoch) + delta/int64(EpochDuration/time.Second)
	if delta < 0 && delta%int64(EpochDuration/time.Second) != 0 {
		epoch--
	}
	if epoch < 0 {
		return 0
	}
	return uint64(epoch)
}

// FirstSlot returns the first slot of an epoch.
func FirstSlot(epoch uint64) int64 {
	return int64(epoch) * SlotsPerEpoch
}

// EpochForSlot returns the epoch containing a slot.
func EpochForSlot(slot int64) uint64 {
	if slot < 0 {
		return 0
	}
	return uint64(slot / SlotsPerEpoch)
}

// LamportsToSol converts lamports to SOL.
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSol
}
