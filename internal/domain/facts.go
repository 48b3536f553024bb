package domain

// EpochReward is the validator's staking-commission reward for one completed
// epoch. A stored row with zero lamports means the epoch was checked and paid
// nothing; a missing row means it was never checked.
type EpochReward struct {
	Epoch    uint64
	Lamports uint64

	// Commission is the validator's commission rate in percent at payout
	// time. Nil when the source does not report it (bulk backfills and
	// negative records).
	Commission *uint8

	// EffectiveSlot is the slot the reward landed in, zero when unknown.
	EffectiveSlot int64

	// Date is the epoch's approximate start date, YYYY-MM-DD.
	Date string
}

// EpochLeaderFees aggregates block-production fees for one epoch.
type EpochLeaderFees struct {
	Epoch          uint64
	FeeLamports    uint64
	LeaderSlots    int
	BlocksProduced int
	Date           string
}

// SkippedSlots is the number of assigned leader slots with no block produced.
func (f EpochLeaderFees) SkippedSlots() int {
	return f.LeaderSlots - f.BlocksProduced
}

// MevClaim is the validator's MEV commission for one epoch, as reported by
// the claims API.
type MevClaim struct {
	Epoch uint64

	// GrossLamports is the epoch's total MEV tips before the commission
	// split; CommissionLamports is the validator's share.
	GrossLamports      uint64
	CommissionLamports uint64

	Date string
}

// VoteCostSource records where a vote-cost figure came from. Estimated rows
// are computed per run and never persisted.
type VoteCostSource string

const (
	VoteCostRPC       VoteCostSource = "rpc"
	VoteCostDune      VoteCostSource = "dune"
	VoteCostEstimated VoteCostSource = "estimated"
)

// Vote cost estimation parameters: ~431k vote transactions per epoch at the
// base fee of 5000 lamports each.
const (
	VoteFeeLamports uint64 = 5_000
	VotesPerEpoch   uint64 = 431_000
)

// EpochVoteCost is the total vote transaction fee spend for one epoch.
// EventCount is the number of vote transactions behind the figure.
type EpochVoteCost struct {
	Epoch        uint64
	CostLamports uint64
	EventCount   uint64
	Source       VoteCostSource
	Date         string
}

// EstimatedVoteCost returns the last-resort estimate for an epoch with no
// recorded figure.
func EstimatedVoteCost(epoch uint64) EpochVoteCost {
	return EpochVoteCost{
		Epoch:        epoch,
		CostLamports: VoteFeeLamports * VotesPerEpoch,
		EventCount:   VotesPerEpoch,
		Source:       VoteCostEstimated,
		Date:         EpochDate(epoch),
	}
}
