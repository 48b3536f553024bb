package reconcile

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/solana"
)

// CurrentEpochSource reports the chain's current epoch.
type CurrentEpochSource interface {
	GetEpochInfo(ctx context.Context) (*solana.EpochInfo, error)
}

// RewardSource fetches one epoch's staking reward from the primary source.
// A nil reward with nil error means the source answered but had no data,
// which for a completed epoch routes the epoch to the fallback.
type RewardSource interface {
	FetchReward(ctx context.Context, epoch uint64) (*domain.EpochReward, error)
}

// LeaderFeeSource fetches one epoch's block-production fees from the primary
// source.
type LeaderFeeSource interface {
	FetchLeaderFees(ctx context.Context, epoch uint64) (*domain.EpochLeaderFees, error)
}

// ClaimsSource returns the validator's MEV commission for every epoch the
// provider knows about, in a single call.
type ClaimsSource interface {
	FetchClaims(ctx context.Context, voteAccount string) ([]domain.MevClaim, error)
}

// Secondary bulk sources are queried once per run by date range, covering the
// earliest failed epoch onward.
type (
	RewardBackfill interface {
		FetchInflationRewards(ctx context.Context, startDate string) ([]domain.EpochReward, error)
	}
	LeaderFeeBackfill interface {
		FetchLeaderFees(ctx context.Context, startDate string) ([]domain.EpochLeaderFees, error)
	}
	VoteCostBackfill interface {
		FetchVoteCosts(ctx context.Context, startDate string) ([]domain.EpochVoteCost, error)
	}
	TransferBackfill interface {
		FetchTransfers(ctx context.Context, startDate string) ([]domain.Transfer, error)
	}
)

// TransferRPC is the slice of the chain RPC the transfer scan needs.
type TransferRPC interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error)
	GetTransactionWithBalances(ctx context.Context, signature string) (*solana.Transaction, error)
}

// RewardRPC adapts the chain RPC to RewardSource for one vote account.
type RewardRPC struct {
	Client      *solana.HTTPClient
	VoteAccount string
}

func (r RewardRPC) FetchReward(ctx context.Context, epoch uint64) (*domain.EpochReward, error) {
	reward, err := r.Client.GetInflationReward(ctx, r.VoteAccount, epoch)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return nil, nil
	}
	return &domain.EpochReward{
		Epoch:         epoch,
		Lamports:      reward.Lamports,
		Commission:    reward.Commission,
		EffectiveSlot: reward.EffectiveSlot,
		Date:          domain.EpochDate(epoch),
	}, nil
}

// LeaderFeeRPC adapts the chain RPC to LeaderFeeSource: leader schedule for
// the epoch, then the fee reward of every assigned slot. Slow for epochs with
// many leader slots, hence the per-block limiter.
type LeaderFeeRPC struct {
	Client   *solana.HTTPClient
	Identity string

	// BlockLimiter paces the per-slot getBlock calls. Optional.
	BlockLimiter *rate.Limiter
}

func (l LeaderFeeRPC) FetchLeaderFees(ctx context.Context, epoch uint64) (*domain.EpochLeaderFees, error) {
	firstSlot := domain.FirstSlot(epoch)

	offsets, err := l.Client.GetLeaderSchedule(ctx, firstSlot+1, l.Identity)
	if err != nil {
		return nil, err
	}

	// No assigned slots is a real answer, not missing data.
	fees := &domain.EpochLeaderFees{Epoch: epoch, LeaderSlots: len(offsets), Date: domain.EpochDate(epoch)}

	for _, offset := range offsets {
		if err := waitLimiter(ctx, l.BlockLimiter); err != nil {
			return nil, err
		}

		block, err := l.Client.GetBlockRewards(ctx, firstSlot+offset)
		if errors.Is(err, solana.ErrSlotSkipped) {
			continue
		}
		if err != nil {
			// Pruned or unavailable block data counts as skipped.
			continue
		}

		for _, reward := range block.Rewards {
			if reward.Pubkey == l.Identity && reward.RewardType == "Fee" && reward.Lamports > 0 {
				fees.FeeLamports += uint64(reward.Lamports)
				fees.BlocksProduced++
				break
			}
		}
	}

	return fees, nil
}

// waitLimiter blocks on the limiter if one is set.
func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
