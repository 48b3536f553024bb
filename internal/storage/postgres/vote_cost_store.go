package postgres

import (
	"context"
	"fmt"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// VoteCostStore implements storage.VoteCostStore using PostgreSQL.
type VoteCostStore struct {
	pool *Pool
}

// NewVoteCostStore creates a new VoteCostStore.
func NewVoteCostStore(pool *Pool) *VoteCostStore {
	return &VoteCostStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VoteCostStore = (*VoteCostStore)(nil)

// Upsert writes a batch of vote costs atomically, replacing existing rows.
// Estimated rows are rejected; only provider-sourced figures persist.
func (s *VoteCostStore) Upsert(ctx context.Context, costs []domain.EpochVoteCost) error {
	if len(costs) == 0 {
		return nil
	}

	for _, c := range costs {
		if c.Source == domain.VoteCostEstimated {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO vote_costs (epoch, cost_lamports, event_count, source, date, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (epoch) DO UPDATE
		SET cost_lamports = EXCLUDED.cost_lamports,
		    event_count = EXCLUDED.event_count,
		    source = EXCLUDED.source,
		    date = EXCLUDED.date,
		    updated_at = NOW()
	`

	for _, c := range costs {
		if _, err := tx.Exec(ctx, query, int64(c.Epoch), int64(c.CostLamports), int64(c.EventCount), string(c.Source), c.Date); err != nil {
			return fmt.Errorf("upsert vote cost epoch %d: %w", c.Epoch, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRange retrieves vote costs within [start, end] (inclusive), ordered by epoch.
func (s *VoteCostStore) GetRange(ctx context.Context, start, end uint64) ([]domain.EpochVoteCost, error) {
	query := `
		SELECT epoch, cost_lamports, event_count, source, date
		FROM vote_costs
		WHERE epoch >= $1 AND epoch <= $2
		ORDER BY epoch ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("get vote costs by range: %w", err)
	}
	defer rows.Close()

	var costs []domain.EpochVoteCost
	for rows.Next() {
		var epoch, lamports, events int64
		var source string
		var c domain.EpochVoteCost
		if err := rows.Scan(&epoch, &lamports, &events, &source, &c.Date); err != nil {
			return nil, fmt.Errorf("scan vote cost row: %w", err)
		}
		c.Epoch = uint64(epoch)
		c.CostLamports = uint64(lamports)
		c.EventCount = uint64(events)
		c.Source = domain.VoteCostSource(source)
		costs = append(costs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote cost rows: %w", err)
	}

	return costs, nil
}

// MissingEpochs returns epochs in [start, end] with no stored row.
func (s *VoteCostStore) MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error) {
	return missingEpochs(ctx, s.pool, "vote_costs", start, end)
}
