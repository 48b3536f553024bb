package reconcile

import (
	"github.com/grod220/validator-finances/internal/addrbook"
	"github.com/grod220/validator-finances/internal/domain"
)

// Categorize buckets transfers by direction relative to the validator's own
// address set and the counterparty's category. Classification is pure: no
// signal beyond (direction, counterparty) participates, and the result is
// recomputed every run rather than stored.
func Categorize(transfers []domain.Transfer, book addrbook.Book, own map[string]bool, personalWallet string) domain.CategorizedTransfers {
	out := domain.CategorizedTransfers{
		ByClass: make(map[domain.TransferClass][]domain.ClassifiedTransfer),
	}
	for _, t := range transfers {
		dir, class := classify(t, book, own, personalWallet)
		out.ByClass[class] = append(out.ByClass[class], domain.ClassifiedTransfer{
			Transfer:  t,
			Direction: dir,
			Class:     class,
		})
	}
	return out
}

func classify(t domain.Transfer, book addrbook.Book, own map[string]bool, personalWallet string) (domain.Direction, domain.TransferClass) {
	if own[t.To] {
		switch {
		case t.From == personalWallet:
			return domain.Incoming, domain.ClassSeeding
		case book.Lookup(t.From).Category == addrbook.SolanaFoundation:
			return domain.Incoming, domain.ClassReimbursement
		case book.Lookup(t.From).Category == addrbook.JitoMev:
			return domain.Incoming, domain.ClassIncentiveDeposit
		case own[t.From]:
			return domain.Incoming, domain.ClassInternalFunding
		default:
			return domain.Incoming, domain.ClassOther
		}
	}

	if own[t.From] {
		switch {
		case book.Lookup(t.To).Category == addrbook.Exchange || t.To == personalWallet:
			return domain.Outgoing, domain.ClassWithdrawal
		case own[t.To]:
			return domain.Outgoing, domain.ClassInternalFunding
		default:
			return domain.Outgoing, domain.ClassOther
		}
	}

	// Observed while scanning a counterparty account but touching neither
	// side of the validator's own set.
	return domain.Outgoing, domain.ClassOther
}
