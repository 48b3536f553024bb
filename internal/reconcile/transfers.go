package reconcile

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/solana"
	"github.com/grod220/validator-finances/internal/storage"
)

// Signature pagination defaults, tuned to stay under RPC response limits.
const (
	defaultPageSize      = 100
	defaultMaxSignatures = 2000
)

// BackfillAccountKey partitions transfers imported from the secondary bulk
// source, which are not tied to a single account scan.
const BackfillAccountKey = "dune"

// TrackedAccount is one address whose transaction history is scanned, with
// the key under which its transfers and cursor are stored.
type TrackedAccount struct {
	Key     string
	Address string
}

// Transfers incrementally extends the SOL transfer history of the tracked
// accounts. Each account's history is paginated backward from the newest
// signature and stops at the stored cursor; the cursor then advances to the
// newest position observed, even when the scan extracted nothing, so runs
// never rescan known history.
type Transfers struct {
	store    storage.TransferStore
	cursors  storage.CursorStore
	rpc      TransferRPC
	backfill TransferBackfill

	tracked  []TrackedAccount
	relevant map[string]bool

	pageSize      int
	maxSignatures int
	limiter       *rate.Limiter
	logger        *log.Logger
	observer      Observer
}

// NewTransfers wires the transfer scanner. The relevant set holds the
// addresses whose balance deltas count as transfers; backfill, limiter, and
// logger are optional.
func NewTransfers(store storage.TransferStore, cursors storage.CursorStore, rpc TransferRPC, backfill TransferBackfill, tracked []TrackedAccount, relevant []string, limiter *rate.Limiter, logger *log.Logger) *Transfers {
	rel := make(map[string]bool, len(relevant))
	for _, addr := range relevant {
		rel[addr] = true
	}
	return &Transfers{
		store:         store,
		cursors:       cursors,
		rpc:           rpc,
		backfill:      backfill,
		tracked:       tracked,
		relevant:      rel,
		pageSize:      defaultPageSize,
		maxSignatures: defaultMaxSignatures,
		limiter:       limiter,
		logger:        pickLogger(logger),
	}
}

// Reconcile scans every tracked account for new transfers, falls back to the
// secondary bulk source when scanning fails or yields nothing, and returns
// the full de-duplicated history. bootstrapDate bounds the bulk fallback
// query.
func (t *Transfers) Reconcile(ctx context.Context, noCache bool, bootstrapDate string) ([]domain.Transfer, Counts, error) {
	var counts Counts

	if !noCache {
		cached, err := t.store.GetAll(ctx)
		if err != nil {
			return nil, counts, fmt.Errorf("read cached transfers: %w", err)
		}
		counts.FromCache = len(cached)
	}

	scanFailed := false
	newCount := 0

	for _, acct := range t.tracked {
		var stopSlot int64
		haveCursor := false
		if !noCache {
			slot, ok, err := t.cursors.Get(ctx, acct.Key)
			if err != nil {
				return nil, counts, fmt.Errorf("read cursor for %s: %w", acct.Key, err)
			}
			stopSlot, haveCursor = slot, ok
		}

		res, err := t.scanAccount(ctx, acct.Address, stopSlot, haveCursor)
		if err != nil {
			t.logger.Printf("[reconcile] transfers: scan of %s aborted: %v", acct.Key, err)
			scanFailed = true
		}
		if res.decodeFailures > 0 {
			t.logger.Printf("[reconcile] transfers: %s: %d undecodable transactions skipped", acct.Key, res.decodeFailures)
		}

		// The scan proves nothing relevant exists below the newest
		// observed position, so the cursor advances even when no
		// transfer was extracted.
		if res.highestSlot > 0 {
			if err := t.cursors.Advance(ctx, acct.Key, res.highestSlot); err != nil {
				return nil, counts, fmt.Errorf("advance cursor for %s: %w", acct.Key, err)
			}
		}

		if len(res.transfers) > 0 {
			if err := t.store.Upsert(ctx, res.transfers, acct.Key); err != nil {
				return nil, counts, fmt.Errorf("store transfers for %s: %w", acct.Key, err)
			}
			newCount += len(res.transfers)
		}

		if t.observer != nil {
			t.observer.ObserveScan(acct.Key, res.signaturesSeen, len(res.transfers), res.highestSlot)
		}
	}

	if t.backfill != nil && (scanFailed || counts.FromCache+newCount == 0) {
		t.logger.Printf("[reconcile] transfers: falling back to bulk source since %s", bootstrapDate)
		bulk, err := t.backfill.FetchTransfers(ctx, bootstrapDate)
		switch {
		case err != nil:
			t.logger.Printf("[reconcile] transfers: bulk fallback failed: %v", err)
		case len(bulk) > 0:
			if err := t.store.Upsert(ctx, bulk, BackfillAccountKey); err != nil {
				return nil, counts, fmt.Errorf("store bulk transfers: %w", err)
			}
		}
	}

	all, err := t.store.GetAll(ctx)
	if err != nil {
		return nil, counts, fmt.Errorf("read merged transfers: %w", err)
	}
	if fetched := len(all) - counts.FromCache; fetched > 0 {
		counts.Fetched = fetched
	}
	return all, counts, nil
}

type scanResult struct {
	transfers      []domain.Transfer
	highestSlot    int64
	signaturesSeen int
	decodeFailures int
	reachedCursor  bool
}

// scanAccount paginates one account's signature history backward until it
// reaches the cursor, exhausts history, or hits the per-account cap. A page
// fetch error aborts the scan but the partial result is still used.
func (t *Transfers) scanAccount(ctx context.Context, address string, stopSlot int64, haveCursor bool) (scanResult, error) {
	var res scanResult
	before := ""

	for res.signaturesSeen < t.maxSignatures {
		if err := waitLimiter(ctx, t.limiter); err != nil {
			return res, err
		}
		page, err := t.rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
			Before: before,
			Limit:  t.pageSize,
		})
		if err != nil {
			return res, fmt.Errorf("fetch signature page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		// First entry of the first page is the newest position this run.
		if page[0].Slot > res.highestSlot {
			res.highestSlot = page[0].Slot
		}

		for _, sig := range page {
			if haveCursor && sig.Slot <= stopSlot {
				res.reachedCursor = true
				break
			}
			res.signaturesSeen++

			// Failed transactions only move fees.
			if sig.Err != nil {
				continue
			}

			if err := waitLimiter(ctx, t.limiter); err != nil {
				return res, err
			}
			tx, err := t.rpc.GetTransactionWithBalances(ctx, sig.Signature)
			if err != nil || tx == nil {
				res.decodeFailures++
				continue
			}
			res.transfers = append(res.transfers, ExtractTransfers(tx, t.relevant)...)
		}

		if res.reachedCursor || len(page) < t.pageSize {
			break
		}
		before = page[len(page)-1].Signature
	}

	return res, nil
}

// ExtractTransfers pulls native SOL movements out of a transaction's balance
// deltas. For each relevant account whose balance changed by at least the
// dust threshold, the first account with an opposite-sign change is taken as
// the counterparty. One transaction can yield several transfers.
func ExtractTransfers(tx *solana.Transaction, relevant map[string]bool) []domain.Transfer {
	n := len(tx.AccountKeys)
	if len(tx.PreBalances) < n {
		n = len(tx.PreBalances)
	}
	if len(tx.PostBalances) < n {
		n = len(tx.PostBalances)
	}

	var out []domain.Transfer
	for i := 0; i < n; i++ {
		if !relevant[tx.AccountKeys[i]] {
			continue
		}

		diff := int64(tx.PostBalances[i]) - int64(tx.PreBalances[i])
		amount := diff
		if amount < 0 {
			amount = -amount
		}
		if uint64(amount) < domain.MinTransferLamports {
			continue
		}

		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			other := int64(tx.PostBalances[j]) - int64(tx.PreBalances[j])
			if (diff > 0 && other >= 0) || (diff < 0 && other <= 0) {
				continue
			}

			from, to := tx.AccountKeys[i], tx.AccountKeys[j]
			if diff > 0 {
				from, to = tx.AccountKeys[j], tx.AccountKeys[i]
			}
			out = append(out, domain.Transfer{
				Signature: tx.Signature,
				Slot:      tx.Slot,
				BlockTime: tx.BlockTime,
				From:      from,
				To:        to,
				Lamports:  uint64(amount),
			})
			break
		}
	}
	return out
}
