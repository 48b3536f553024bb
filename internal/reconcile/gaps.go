package reconcile

import (
	"context"
	"sort"
)

// Plan partitions a requested epoch range against the chain's current epoch.
// Epochs strictly below the current epoch are completed and cacheable; the
// current epoch is volatile and never persisted.
type Plan struct {
	Start uint64
	End   uint64

	// CompletedEnd is the last cacheable epoch: min(End, current-1).
	CompletedEnd uint64

	// HasCompleted is false when the range holds no completed epochs at
	// all, e.g. a validator with no history requesting only the current
	// epoch.
	HasCompleted bool

	// IncludeCurrent is true when the current epoch falls inside the
	// range; it is fetched live and never written. A range lying entirely
	// in the future covers nothing.
	IncludeCurrent bool
}

// ResolvePlan computes the completed/in-flight split for one run.
func ResolvePlan(start, end, current uint64) Plan {
	p := Plan{Start: start, End: end}

	var completedEnd uint64
	if current > 0 {
		completedEnd = current - 1
	}
	if end < completedEnd {
		completedEnd = end
	}

	p.CompletedEnd = completedEnd
	p.HasCompleted = current > 0 && start <= completedEnd
	p.IncludeCurrent = start <= current && end >= current

	return p
}

// missingEpochser is the slice of a fact store the gap computation needs.
type missingEpochser interface {
	MissingEpochs(ctx context.Context, start, end uint64) ([]uint64, error)
}

// MissingEpochs returns the completed epochs that need fetching, ascending.
// With noCache set the whole completed range is refetched regardless of what
// the store holds; results are still written back afterwards.
func (p Plan) MissingEpochs(ctx context.Context, store missingEpochser, noCache bool) ([]uint64, error) {
	if !p.HasCompleted {
		return nil, nil
	}

	if noCache {
		epochs := make([]uint64, 0, p.CompletedEnd-p.Start+1)
		for e := p.Start; e <= p.CompletedEnd; e++ {
			epochs = append(epochs, e)
		}
		return epochs, nil
	}

	missing, err := store.MissingEpochs(ctx, p.Start, p.CompletedEnd)
	if err != nil {
		return nil, err
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}
