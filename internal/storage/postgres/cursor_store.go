package postgres

import (
	"context"
	"fmt"

	"github.com/grod220/validator-finances/internal/storage"
)

// CursorStore implements storage.CursorStore using PostgreSQL.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get returns the scan high-water mark for an account key. The cursor row is
// folded with the highest stored transfer slot for the account, so a missing
// cursor row recovers from transfer data.
func (s *CursorStore) Get(ctx context.Context, accountKey string) (int64, bool, error) {
	if accountKey == "" {
		return 0, false, storage.ErrInvalidInput
	}

	query := `
		SELECT GREATEST(
			(SELECT slot FROM account_cursors WHERE account_key = $1),
			(SELECT MAX(slot) FROM sol_transfers WHERE account_key = $1)
		)
	`

	var slot *int64
	if err := s.pool.QueryRow(ctx, query, accountKey).Scan(&slot); err != nil {
		return 0, false, fmt.Errorf("get cursor for %s: %w", accountKey, err)
	}
	if slot == nil {
		return 0, false, nil
	}

	return *slot, true, nil
}

// Advance moves the cursor forward, never backward.
func (s *CursorStore) Advance(ctx context.Context, accountKey string, slot int64) error {
	if accountKey == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_cursors (account_key, slot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_key) DO UPDATE
		SET slot = GREATEST(account_cursors.slot, EXCLUDED.slot),
		    updated_at = NOW()
	`, accountKey, slot)
	if err != nil {
		return fmt.Errorf("advance cursor for %s: %w", accountKey, err)
	}

	return nil
}
