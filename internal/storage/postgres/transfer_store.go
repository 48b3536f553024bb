package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// Upsert writes a batch atomically under the given account key.
func (s *TransferStore) Upsert(ctx context.Context, transfers []domain.Transfer, accountKey string) error {
	if accountKey == "" {
		return storage.ErrInvalidInput
	}
	if len(transfers) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sol_transfers (
			account_key, signature, from_address, to_address, amount_lamports, slot, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_key, signature, from_address, to_address, amount_lamports) DO UPDATE
		SET slot = EXCLUDED.slot,
		    block_time = EXCLUDED.block_time
	`

	for _, t := range transfers {
		_, err := tx.Exec(ctx, query,
			accountKey, t.Signature, t.From, t.To, int64(t.Lamports), t.Slot, t.BlockTime)
		if err != nil {
			return fmt.Errorf("upsert transfer %s: %w", t.Signature, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAccount retrieves the stored transfers for one account key, ordered by slot.
func (s *TransferStore) GetByAccount(ctx context.Context, accountKey string) ([]domain.Transfer, error) {
	query := `
		SELECT signature, from_address, to_address, amount_lamports, slot, block_time
		FROM sol_transfers
		WHERE account_key = $1
		ORDER BY slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, accountKey)
	if err != nil {
		return nil, fmt.Errorf("get transfers by account: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// GetAll retrieves transfers across all partitions, de-duplicated by natural
// key and ordered by slot.
func (s *TransferStore) GetAll(ctx context.Context) ([]domain.Transfer, error) {
	query := `
		SELECT DISTINCT ON (signature, from_address, to_address, amount_lamports)
		       signature, from_address, to_address, amount_lamports, slot, block_time
		FROM sol_transfers
		ORDER BY signature, from_address, to_address, amount_lamports, slot ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all transfers: %w", err)
	}
	defer rows.Close()

	transfers, err := scanTransfers(rows)
	if err != nil {
		return nil, err
	}

	// DISTINCT ON forces its own ordering; re-sort by slot for callers.
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].Slot != transfers[j].Slot {
			return transfers[i].Slot < transfers[j].Slot
		}
		return transfers[i].Signature < transfers[j].Signature
	})

	return transfers, nil
}

// scanTransfers scans multiple rows into a slice of Transfer.
func scanTransfers(rows pgx.Rows) ([]domain.Transfer, error) {
	var transfers []domain.Transfer

	for rows.Next() {
		var t domain.Transfer
		var lamports int64

		err := rows.Scan(&t.Signature, &t.From, &t.To, &lamports, &t.Slot, &t.BlockTime)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		t.Lamports = uint64(lamports)
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return transfers, nil
}
