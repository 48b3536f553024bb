package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/time/rate"

	"github.com/grod220/validator-finances/internal/domain"
)

// epochStore is the store contract shared by every epoch-keyed fact type.
type epochStore[T any] interface {
	Upsert(ctx context.Context, rows []T) error
	GetRange(ctx context.Context, start, end uint64) ([]T, error)
	MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error)
}

// epochReconciler drives the shared primary-then-fallback pass for one
// epoch-keyed fact type. Missing completed epochs are fetched ascending from
// the primary source one at a time and written immediately; epochs the
// primary could not fill go to a single date-bounded secondary bulk query.
// Epochs absent from a successful bulk response are negative-cached; a failed
// or unconfigured secondary leaves them missing for the next run.
type epochReconciler[T any] struct {
	name  string
	store epochStore[T]

	// fetchOne queries the primary source for one epoch. Nil when the fact
	// type has no primary source; nil *T with nil error means the source
	// answered but had no data.
	fetchOne func(ctx context.Context, epoch uint64) (*T, error)

	// fetchBulk queries the secondary source from a start date. Nil when
	// no secondary source is configured.
	fetchBulk func(ctx context.Context, startDate string) ([]T, error)

	epochOf  func(T) uint64
	negative func(epoch uint64) T

	limiter *rate.Limiter
	logger  *log.Logger
}

func (r *epochReconciler[T]) run(ctx context.Context, start, end, current uint64, noCache bool) ([]T, Counts, error) {
	plan := ResolvePlan(start, end, current)

	var counts Counts
	var rows []T

	if plan.HasCompleted && !noCache {
		cached, err := r.store.GetRange(ctx, plan.Start, plan.CompletedEnd)
		if err != nil {
			return nil, counts, fmt.Errorf("read cached %s: %w", r.name, err)
		}
		counts.FromCache = len(cached)
		rows = cached
	}

	missing, err := plan.MissingEpochs(ctx, r.store, noCache)
	if err != nil {
		return nil, counts, fmt.Errorf("resolve missing %s epochs: %w", r.name, err)
	}

	var failed []uint64
	for _, epoch := range missing {
		if r.fetchOne == nil {
			failed = append(failed, epoch)
			continue
		}
		if err := waitLimiter(ctx, r.limiter); err != nil {
			return nil, counts, err
		}

		fact, err := r.fetchOne(ctx, epoch)
		if err != nil {
			r.logger.Printf("[reconcile] %s epoch %d: primary fetch failed: %v", r.name, epoch, err)
			failed = append(failed, epoch)
			continue
		}
		if fact == nil {
			failed = append(failed, epoch)
			continue
		}

		// Each epoch is fully written before the next begins, so an
		// interrupted run leaves a gap-free prefix.
		if err := r.store.Upsert(ctx, []T{*fact}); err != nil {
			return nil, counts, fmt.Errorf("store %s epoch %d: %w", r.name, epoch, err)
		}
		rows = append(rows, *fact)
		counts.Fetched++
	}

	if len(failed) > 0 {
		filled, err := r.backfill(ctx, failed, &counts)
		if err != nil {
			return nil, counts, err
		}
		rows = append(rows, filled...)
	}

	// The current epoch is fetched live and never written; its values can
	// still change.
	if plan.IncludeCurrent && r.fetchOne != nil {
		if err := waitLimiter(ctx, r.limiter); err != nil {
			return nil, counts, err
		}
		fact, err := r.fetchOne(ctx, current)
		switch {
		case err != nil:
			r.logger.Printf("[reconcile] %s epoch %d (current): pending: %v", r.name, current, err)
		case fact != nil:
			rows = append(rows, *fact)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return r.epochOf(rows[i]) < r.epochOf(rows[j]) })
	return rows, counts, nil
}

// backfill resolves the primary failure set via the secondary source. The
// failure set arrives ascending, so a query window opening at the earliest
// failed epoch's date provably covers every epoch being decided on.
func (r *epochReconciler[T]) backfill(ctx context.Context, failed []uint64, counts *Counts) ([]T, error) {
	if r.fetchBulk == nil {
		counts.StillMissing += len(failed)
		r.logger.Printf("[reconcile] %s: %d epochs missing, no secondary source configured", r.name, len(failed))
		return nil, nil
	}

	startDate := domain.EpochDate(failed[0])
	r.logger.Printf("[reconcile] %s: querying secondary source for %d epochs since %s", r.name, len(failed), startDate)

	bulk, err := r.fetchBulk(ctx, startDate)
	if err != nil {
		counts.StillMissing += len(failed)
		r.logger.Printf("[reconcile] %s: secondary query failed, %d epochs stay missing: %v", r.name, len(failed), err)
		return nil, nil
	}

	byEpoch := make(map[uint64]T, len(bulk))
	for _, fact := range bulk {
		byEpoch[r.epochOf(fact)] = fact
	}

	batch := make([]T, 0, len(failed))
	for _, epoch := range failed {
		if fact, ok := byEpoch[epoch]; ok {
			batch = append(batch, fact)
			counts.Fetched++
			continue
		}
		// A successful bulk response that omits the epoch is
		// authoritative evidence of absence.
		batch = append(batch, r.negative(epoch))
		counts.NegativeCached++
	}

	if err := r.store.Upsert(ctx, batch); err != nil {
		return nil, fmt.Errorf("store %s backfill batch: %w", r.name, err)
	}
	return batch, nil
}
