package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// RewardStore implements storage.RewardStore using PostgreSQL.
type RewardStore struct {
	pool *Pool
}

// NewRewardStore creates a new RewardStore.
func NewRewardStore(pool *Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RewardStore = (*RewardStore)(nil)

// Upsert writes a batch of epoch rewards atomically, replacing existing rows.
func (s *RewardStore) Upsert(ctx context.Context, rewards []domain.EpochReward) error {
	if len(rewards) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rewards (epoch, amount_lamports, commission_rate, effective_slot, date, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (epoch) DO UPDATE
		SET amount_lamports = EXCLUDED.amount_lamports,
		    commission_rate = EXCLUDED.commission_rate,
		    effective_slot = EXCLUDED.effective_slot,
		    date = EXCLUDED.date,
		    updated_at = NOW()
	`

	for _, r := range rewards {
		var commission *int16
		if r.Commission != nil {
			v := int16(*r.Commission)
			commission = &v
		}
		if _, err := tx.Exec(ctx, query, int64(r.Epoch), int64(r.Lamports), commission, r.EffectiveSlot, r.Date); err != nil {
			return fmt.Errorf("upsert reward epoch %d: %w", r.Epoch, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRange retrieves rewards within [start, end] (inclusive), ordered by epoch.
func (s *RewardStore) GetRange(ctx context.Context, start, end uint64) ([]domain.EpochReward, error) {
	query := `
		SELECT epoch, amount_lamports, commission_rate, effective_slot, date
		FROM rewards
		WHERE epoch >= $1 AND epoch <= $2
		ORDER BY epoch ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("get rewards by range: %w", err)
	}
	defer rows.Close()

	return scanRewards(rows)
}

// MissingEpochs returns epochs in [start, end] with no stored row.
func (s *RewardStore) MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error) {
	return missingEpochs(ctx, s.pool, "rewards", start, end)
}

// scanRewards scans multiple rows into a slice of EpochReward.
func scanRewards(rows pgx.Rows) ([]domain.EpochReward, error) {
	var rewards []domain.EpochReward

	for rows.Next() {
		var epoch, lamports int64
		var commission *int16
		var r domain.EpochReward
		if err := rows.Scan(&epoch, &lamports, &commission, &r.EffectiveSlot, &r.Date); err != nil {
			return nil, fmt.Errorf("scan reward row: %w", err)
		}
		r.Epoch = uint64(epoch)
		r.Lamports = uint64(lamports)
		if commission != nil {
			v := uint8(*commission)
			r.Commission = &v
		}
		rewards = append(rewards, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward rows: %w", err)
	}

	return rewards, nil
}

// missingEpochs computes the epochs in [start, end] absent from an
// epoch-keyed table. The table name comes from a fixed internal set, never
// from user input.
func missingEpochs(ctx context.Context, pool *Pool, table string, start, end uint64) ([]uint64, error) {
	if start > end {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT gs.epoch
		FROM generate_series($1::bigint, $2::bigint) AS gs(epoch)
		LEFT JOIN %s t ON t.epoch = gs.epoch
		WHERE t.epoch IS NULL
		ORDER BY gs.epoch ASC
	`, table)

	rows, err := pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("query missing epochs in %s: %w", table, err)
	}
	defer rows.Close()

	var missing []uint64
	for rows.Next() {
		var epoch int64
		if err := rows.Scan(&epoch); err != nil {
			return nil, fmt.Errorf("scan missing epoch: %w", err)
		}
		missing = append(missing, uint64(epoch))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing epochs: %w", err)
	}

	return missing, nil
}
