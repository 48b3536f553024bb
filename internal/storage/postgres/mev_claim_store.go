package postgres

import (
	"context"
	"fmt"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// MevClaimStore implements storage.MevClaimStore using PostgreSQL.
type MevClaimStore struct {
	pool *Pool
}

// NewMevClaimStore creates a new MevClaimStore.
func NewMevClaimStore(pool *Pool) *MevClaimStore {
	return &MevClaimStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MevClaimStore = (*MevClaimStore)(nil)

// Upsert writes a batch of MEV claims atomically, replacing existing rows.
func (s *MevClaimStore) Upsert(ctx context.Context, claims []domain.MevClaim) error {
	if len(claims) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO mev_claims (epoch, gross_lamports, commission_lamports, date, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (epoch) DO UPDATE
		SET gross_lamports = EXCLUDED.gross_lamports,
		    commission_lamports = EXCLUDED.commission_lamports,
		    date = EXCLUDED.date,
		    updated_at = NOW()
	`

	for _, c := range claims {
		if _, err := tx.Exec(ctx, query, int64(c.Epoch), int64(c.GrossLamports), int64(c.CommissionLamports), c.Date); err != nil {
			return fmt.Errorf("upsert mev claim epoch %d: %w", c.Epoch, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRange retrieves MEV claims within [start, end] (inclusive), ordered by epoch.
func (s *MevClaimStore) GetRange(ctx context.Context, start, end uint64) ([]domain.MevClaim, error) {
	query := `
		SELECT epoch, gross_lamports, commission_lamports, date
		FROM mev_claims
		WHERE epoch >= $1 AND epoch <= $2
		ORDER BY epoch ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("get mev claims by range: %w", err)
	}
	defer rows.Close()

	var claims []domain.MevClaim
	for rows.Next() {
		var epoch, gross, commission int64
		var c domain.MevClaim
		if err := rows.Scan(&epoch, &gross, &commission, &c.Date); err != nil {
			return nil, fmt.Errorf("scan mev claim row: %w", err)
		}
		c.Epoch = uint64(epoch)
		c.GrossLamports = uint64(gross)
		c.CommissionLamports = uint64(commission)
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mev claim rows: %w", err)
	}

	return claims, nil
}

// MissingEpochs returns epochs in [start, end] with no stored row.
func (s *MevClaimStore) MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error) {
	return missingEpochs(ctx, s.pool, "mev_claims", start, end)
}

// LatestEpoch returns the highest stored claim epoch, or ok=false when empty.
func (s *MevClaimStore) LatestEpoch(ctx context.Context) (uint64, bool, error) {
	// MAX over an empty table yields NULL.
	var epoch *int64
	err := s.pool.QueryRow(ctx, `SELECT MAX(epoch) FROM mev_claims`).Scan(&epoch)
	if err != nil {
		return 0, false, fmt.Errorf("query latest mev claim epoch: %w", err)
	}
	if epoch == nil {
		return 0, false, nil
	}
	return uint64(*epoch), true, nil
}
