package clickhouse

import (
	"context"
	"fmt"

	"github.com/grod220/validator-finances/internal/domain"
)

// LedgerFact is one mirrored row in the ledger_facts analytics table.
type LedgerFact struct {
	FactType string
	Epoch    uint64
	Lamports uint64
	Detail   string
}

// LedgerFactsStore mirrors reconciled epoch facts into ClickHouse for
// dashboard queries. It is a write-only sink; the Postgres ledger remains
// the source of truth.
type LedgerFactsStore struct {
	conn *Conn
}

// NewLedgerFactsStore creates a new LedgerFactsStore.
func NewLedgerFactsStore(conn *Conn) *LedgerFactsStore {
	return &LedgerFactsStore{conn: conn}
}

// Mirror writes a batch of facts. Re-mirrored epochs collapse on merge via
// ReplacingMergeTree.
func (s *LedgerFactsStore) Mirror(ctx context.Context, facts []LedgerFact) error {
	if len(facts) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_facts (fact_type, epoch, lamports, detail)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range facts {
		if err := batch.Append(f.FactType, f.Epoch, f.Lamports, f.Detail); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// FactsFromRewards converts reward rows into mirror facts.
func FactsFromRewards(rewards []domain.EpochReward) []LedgerFact {
	facts := make([]LedgerFact, len(rewards))
	for i, r := range rewards {
		facts[i] = LedgerFact{FactType: "reward", Epoch: r.Epoch, Lamports: r.Lamports}
	}
	return facts
}

// FactsFromLeaderFees converts leader fee rows into mirror facts.
func FactsFromLeaderFees(fees []domain.EpochLeaderFees) []LedgerFact {
	facts := make([]LedgerFact, len(fees))
	for i, f := range fees {
		facts[i] = LedgerFact{
			FactType: "leader_fee",
			Epoch:    f.Epoch,
			Lamports: f.FeeLamports,
			Detail:   fmt.Sprintf("leader_slots=%d blocks=%d skipped=%d", f.LeaderSlots, f.BlocksProduced, f.SkippedSlots()),
		}
	}
	return facts
}

// FactsFromMevClaims converts MEV claim rows into mirror facts.
func FactsFromMevClaims(claims []domain.MevClaim) []LedgerFact {
	facts := make([]LedgerFact, len(claims))
	for i, c := range claims {
		facts[i] = LedgerFact{FactType: "mev_claim", Epoch: c.Epoch, Lamports: c.CommissionLamports}
	}
	return facts
}

// FactsFromVoteCosts converts vote cost rows into mirror facts. The source
// tag rides along so dashboards can separate estimates from provider data.
func FactsFromVoteCosts(costs []domain.EpochVoteCost) []LedgerFact {
	facts := make([]LedgerFact, len(costs))
	for i, c := range costs {
		facts[i] = LedgerFact{
			FactType: "vote_cost",
			Epoch:    c.Epoch,
			Lamports: c.CostLamports,
			Detail:   "source=" + string(c.Source),
		}
	}
	return facts
}
