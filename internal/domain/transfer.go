package domain

// Transfer is a native SOL movement touching one of the tracked accounts.
type Transfer struct {
	Signature string
	Slot      int64
	BlockTime int64
	From      string
	To        string
	Lamports  uint64
}

// TransferKey is the natural identity of a transfer. The same movement can be
// observed from both sides of an internal transfer, or re-imported from the
// bulk source; reads collapse on this key.
type TransferKey struct {
	Signature string
	From      string
	To        string
	Lamports  uint64
}

// Key returns the transfer's dedup key.
func (t Transfer) Key() TransferKey {
	return TransferKey{Signature: t.Signature, From: t.From, To: t.To, Lamports: t.Lamports}
}

// Direction of a transfer relative to the tracked account set.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// TransferClass is the bookkeeping bucket a transfer falls into.
type TransferClass string

const (
	ClassSeeding          TransferClass = "seeding"
	ClassReimbursement    TransferClass = "program_reimbursement"
	ClassIncentiveDeposit TransferClass = "incentive_deposit"
	ClassInternalFunding  TransferClass = "internal_funding"
	ClassWithdrawal       TransferClass = "withdrawal"
	ClassOther            TransferClass = "other"
)

// ClassifiedTransfer pairs a transfer with its direction and class.
type ClassifiedTransfer struct {
	Transfer
	Direction Direction
	Class     TransferClass
}

// CategorizedTransfers groups a run's transfers by class.
type CategorizedTransfers struct {
	ByClass map[TransferClass][]ClassifiedTransfer
}

// Total sums lamports across one class.
func (c CategorizedTransfers) Total(class TransferClass) uint64 {
	var sum uint64
	for _, t := range c.ByClass[class] {
		sum += t.Lamports
	}
	return sum
}
