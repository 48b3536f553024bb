package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// LeaderFeeStore implements storage.LeaderFeeStore using PostgreSQL.
type LeaderFeeStore struct {
	pool *Pool
}

// NewLeaderFeeStore creates a new LeaderFeeStore.
func NewLeaderFeeStore(pool *Pool) *LeaderFeeStore {
	return &LeaderFeeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LeaderFeeStore = (*LeaderFeeStore)(nil)

// Upsert writes a batch of epoch leader fees atomically, replacing existing rows.
func (s *LeaderFeeStore) Upsert(ctx context.Context, fees []domain.EpochLeaderFees) error {
	if len(fees) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO leader_fees (epoch, fee_lamports, leader_slots, blocks_produced, date, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (epoch) DO UPDATE
		SET fee_lamports = EXCLUDED.fee_lamports,
		    leader_slots = EXCLUDED.leader_slots,
		    blocks_produced = EXCLUDED.blocks_produced,
		    date = EXCLUDED.date,
		    updated_at = NOW()
	`

	for _, f := range fees {
		_, err := tx.Exec(ctx, query,
			int64(f.Epoch), int64(f.FeeLamports), f.LeaderSlots, f.BlocksProduced, f.Date)
		if err != nil {
			return fmt.Errorf("upsert leader fees epoch %d: %w", f.Epoch, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRange retrieves leader fees within [start, end] (inclusive), ordered by epoch.
func (s *LeaderFeeStore) GetRange(ctx context.Context, start, end uint64) ([]domain.EpochLeaderFees, error) {
	query := `
		SELECT epoch, fee_lamports, leader_slots, blocks_produced, date
		FROM leader_fees
		WHERE epoch >= $1 AND epoch <= $2
		ORDER BY epoch ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("get leader fees by range: %w", err)
	}
	defer rows.Close()

	return scanLeaderFees(rows)
}

// MissingEpochs returns epochs in [start, end] with no stored row.
func (s *LeaderFeeStore) MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error) {
	return missingEpochs(ctx, s.pool, "leader_fees", start, end)
}

// scanLeaderFees scans multiple rows into a slice of EpochLeaderFees.
func scanLeaderFees(rows pgx.Rows) ([]domain.EpochLeaderFees, error) {
	var fees []domain.EpochLeaderFees

	for rows.Next() {
		var epoch, lamports int64
		var f domain.EpochLeaderFees

		if err := rows.Scan(&epoch, &lamports, &f.LeaderSlots, &f.BlocksProduced, &f.Date); err != nil {
			return nil, fmt.Errorf("scan leader fee row: %w", err)
		}
		f.Epoch = uint64(epoch)
		f.FeeLamports = uint64(lamports)
		fees = append(fees, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leader fee rows: %w", err)
	}

	return fees, nil
}
