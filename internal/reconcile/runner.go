// Package reconcile is the epoch-indexed reconciliation engine: it decides
// per fact type which epochs are already cached, fetches the missing ones
// from the primary source, falls back to the secondary bulk source for
// epochs the primary could not fill, negative-caches confirmed-empty epochs,
// and incrementally extends the per-account transfer history behind a slot
// cursor. Completed epochs are immutable once stored; the current epoch is
// fetched live and never persisted.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/grod220/validator-finances/internal/addrbook"
	"github.com/grod220/validator-finances/internal/domain"
)

// Observer receives per-phase timings and counts, typically backed by
// prometheus collectors. ObserveScan reports one tracked account's scan:
// signatures examined, transfers extracted, and the cursor position after
// the scan (zero when the scan saw nothing).
type Observer interface {
	ObservePhase(phase string, d time.Duration)
	ObserveCounts(factType string, c Counts)
	ObserveScan(account string, signatures, transfers int, cursorSlot int64)
}

// Request describes one reconciliation run.
type Request struct {
	StartEpoch uint64

	// EndEpoch of 0 means through the current epoch.
	EndEpoch uint64

	// NoCache forces a refresh of the whole completed range; results are
	// still written back.
	NoCache bool

	// BootstrapDate bounds the transfer bulk fallback query. Defaults to
	// the start epoch's date.
	BootstrapDate string
}

// Result holds everything one run reconciled.
type Result struct {
	CurrentEpoch uint64
	StartEpoch   uint64
	EndEpoch     uint64

	Rewards      []domain.EpochReward
	RewardCounts Counts

	LeaderFees      []domain.EpochLeaderFees
	LeaderFeeCounts Counts

	MevClaims      []domain.MevClaim
	MevClaimCounts Counts

	VoteCosts      []domain.EpochVoteCost
	VoteCostCounts Counts

	Transfers      []domain.Transfer
	TransferCounts Counts

	Categorized domain.CategorizedTransfers
}

// RunnerConfig wires a Runner. Observer and Logger are optional; a nil
// reconciler skips its phase.
type RunnerConfig struct {
	Chain      CurrentEpochSource
	Rewards    *Rewards
	LeaderFees *LeaderFees
	MevClaims  *MevClaims
	VoteCosts  *VoteCosts
	Transfers  *Transfers

	Book           addrbook.Book
	OwnAddresses   []string
	PersonalWallet string

	Observer Observer
	Logger   *log.Logger
}

// Runner executes a full reconciliation pass. Fact types are independent: a
// failing phase is logged and skipped, and the run always completes with a
// count report.
type Runner struct {
	cfg    RunnerConfig
	own    map[string]bool
	logger *log.Logger
}

// NewRunner builds a Runner from its wiring.
func NewRunner(cfg RunnerConfig) *Runner {
	own := make(map[string]bool, len(cfg.OwnAddresses))
	for _, addr := range cfg.OwnAddresses {
		own[addr] = true
	}
	if cfg.Transfers != nil {
		cfg.Transfers.observer = cfg.Observer
	}
	return &Runner{cfg: cfg, own: own, logger: pickLogger(cfg.Logger)}
}

// Run reconciles every fact type for the requested range, then categorizes
// the merged transfer history.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	info, err := r.cfg.Chain.GetEpochInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get current epoch: %w", err)
	}
	current := info.Epoch

	start := req.StartEpoch
	end := req.EndEpoch
	if end == 0 {
		end = current
	}
	bootstrapDate := req.BootstrapDate
	if bootstrapDate == "" {
		bootstrapDate = domain.EpochDate(start)
	}

	r.logger.Printf("[reconcile] run: epochs %d-%d, current %d, no_cache=%v", start, end, current, req.NoCache)

	res := &Result{CurrentEpoch: current, StartEpoch: start, EndEpoch: end}

	if r.cfg.Rewards != nil {
		res.RewardCounts = r.phase("rewards", func() (Counts, error) {
			rows, counts, err := r.cfg.Rewards.Reconcile(ctx, start, end, current, req.NoCache)
			res.Rewards = rows
			return counts, err
		})
	}

	if r.cfg.Transfers != nil {
		res.TransferCounts = r.phase("transfers", func() (Counts, error) {
			rows, counts, err := r.cfg.Transfers.Reconcile(ctx, req.NoCache, bootstrapDate)
			res.Transfers = rows
			return counts, err
		})
	}

	if r.cfg.MevClaims != nil {
		res.MevClaimCounts = r.phase("mev_claims", func() (Counts, error) {
			rows, counts, err := r.cfg.MevClaims.Reconcile(ctx, start, end, current, req.NoCache)
			res.MevClaims = rows
			return counts, err
		})
	}

	if r.cfg.LeaderFees != nil {
		res.LeaderFeeCounts = r.phase("leader_fees", func() (Counts, error) {
			rows, counts, err := r.cfg.LeaderFees.Reconcile(ctx, start, end, current, req.NoCache)
			res.LeaderFees = rows
			return counts, err
		})
	}

	if r.cfg.VoteCosts != nil {
		res.VoteCostCounts = r.phase("vote_costs", func() (Counts, error) {
			rows, counts, err := r.cfg.VoteCosts.Reconcile(ctx, start, end, current, req.NoCache)
			res.VoteCosts = rows
			return counts, err
		})
	}

	// Categorization runs only after every fact type and all transfers for
	// the run are settled.
	if r.cfg.Book != nil {
		res.Categorized = Categorize(res.Transfers, r.cfg.Book, r.own, r.cfg.PersonalWallet)
	}

	r.logSummary(res)
	return res, nil
}

// phase runs one fact type with timing and failure isolation: an error is
// logged and the run continues with the other types.
func (r *Runner) phase(name string, fn func() (Counts, error)) Counts {
	began := time.Now()
	counts, err := fn()
	elapsed := time.Since(began)

	if r.cfg.Observer != nil {
		r.cfg.Observer.ObservePhase(name, elapsed)
		r.cfg.Observer.ObserveCounts(name, counts)
	}
	if err != nil {
		r.logger.Printf("[reconcile] %s: phase failed after %s, continuing: %v", name, elapsed.Round(time.Millisecond), err)
	}
	return counts
}

func (r *Runner) logSummary(res *Result) {
	r.logger.Printf("[reconcile] summary for epochs %d-%d:", res.StartEpoch, res.EndEpoch)
	for _, row := range []struct {
		name   string
		counts Counts
	}{
		{"rewards", res.RewardCounts},
		{"leader_fees", res.LeaderFeeCounts},
		{"mev_claims", res.MevClaimCounts},
		{"vote_costs", res.VoteCostCounts},
		{"transfers", res.TransferCounts},
	} {
		r.logger.Printf("[reconcile]   %s: %d cached, %d fetched, %d negative-cached, %d still missing, %d estimated",
			row.name, row.counts.FromCache, row.counts.Fetched, row.counts.NegativeCached, row.counts.StillMissing, row.counts.Estimated)
	}
}

func pickLogger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l
}

func sortByEpoch[T any](rows []T, epochOf func(T) uint64) {
	sort.Slice(rows, func(i, j int) bool { return epochOf(rows[i]) < epochOf(rows[j]) })
}
