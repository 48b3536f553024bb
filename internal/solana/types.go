package solana

// EpochInfo from getEpochInfo.
type EpochInfo struct {
	Epoch        uint64
	AbsoluteSlot int64
	SlotIndex    int64
	SlotsInEpoch int64
}

// InflationReward from getInflationReward: the staking reward credited to a
// vote account for one epoch. A nil result from the RPC means no reward was
// paid that epoch.
type InflationReward struct {
	Epoch         uint64
	EffectiveSlot int64
	Lamports      uint64
	PostBalance   uint64
	Commission    *uint8
}

// BlockReward is one rewards[] entry of getBlock.
type BlockReward struct {
	Pubkey     string
	Lamports   int64
	RewardType string
}

// BlockRewards is the rewards-only view of a block.
type BlockRewards struct {
	Slot      int64
	BlockTime *int64
	Rewards   []BlockReward
}

// FeeLamports sums the block's fee rewards.
func (b BlockRewards) FeeLamports() uint64 {
	var sum uint64
	for _, r := range b.Rewards {
		if r.RewardType == "Fee" && r.Lamports > 0 {
			sum += uint64(r.Lamports)
		}
	}
	return sum
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// Transaction is the balance-delta view of a transaction, enough to extract
// native SOL transfers.
type Transaction struct {
	Signature    string
	Slot         int64
	BlockTime    int64
	Err          interface{}
	Fee          uint64
	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
}

// Failed reports whether the transaction errored on chain.
func (t Transaction) Failed() bool {
	return t.Err != nil
}
