package dune

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// rowF64 extracts a numeric field.
func rowF64(row map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := row[key]
	if !ok {
		return 0, fmt.Errorf("missing field: %s", key)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("invalid field %s: %w", key, err)
	}
	return f, nil
}

// rowU64 extracts a numeric field as uint64. Dune returns aggregates as
// floats, so values round and clamp at the uint64 range.
func rowU64(row map[string]json.RawMessage, key string) (uint64, error) {
	f, err := rowF64(row, key)
	if err != nil {
		return 0, err
	}
	return safeF64ToU64(f), nil
}

// rowString extracts a string field.
func rowString(row map[string]json.RawMessage, key string) (string, error) {
	raw, ok := row[key]
	if !ok {
		return "", fmt.Errorf("missing field: %s", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("invalid field %s: %w", key, err)
	}
	return s, nil
}

// rowTimestamp extracts an RFC3339 timestamp field as unix seconds, or zero
// when absent or malformed.
func rowTimestamp(row map[string]json.RawMessage, key string) int64 {
	raw, ok := row[key]
	if !ok {
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// Largest f64 below the uint64 range; beyond this precision breaks down.
const maxSafeU64 = 18446744073709549568.0

// safeF64ToU64 rounds with clamping: negatives and NaN to zero, overflow to
// the max.
func safeF64ToU64(f float64) uint64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= maxSafeU64 {
		return math.MaxUint64
	}
	return uint64(math.Round(f))
}

// Max SOL representable in uint64 lamports, conservatively bounded.
const maxSafeSol = 18_446_744_073.0

// solToLamports converts a SOL amount to lamports with overflow protection.
func solToLamports(sol float64) uint64 {
	if math.IsNaN(sol) || sol < 0 {
		return 0
	}
	if sol >= maxSafeSol {
		return math.MaxUint64
	}
	return uint64(math.Round(sol * 1e9))
}
