package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger entry. The stored amount is always
// positive; the kind implies the sign applied to the owning account.
type TransactionKind string

const (
	KindDeposit     TransactionKind = "deposit"
	KindWithdraw    TransactionKind = "withdraw"
	KindTransferOut TransactionKind = "transfer_out"
	KindTransferIn  TransactionKind = "transfer_in"
)

// IsValid reports whether k is one of the four ledger entry kinds.
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransferOut, KindTransferIn:
		return true
	}
	return false
}

// Credits reports whether the kind increases the owning account's balance.
func (k TransactionKind) Credits() bool {
	return k == KindDeposit || k == KindTransferIn
}

// Transaction is one immutable entry in the append-only ledger.
type Transaction struct {
	TxID          int64           `json:"txID"`          // Monotonically increasing, assigned at append time
	AccountNumber string          `json:"accountNumber"` // Owning account; must exist at append time
	Kind          TransactionKind `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`                 // Always positive
	Counterparty  string          `json:"counterparty,omitempty"` // Other account for transfer entries, empty otherwise
	OccurredAt    time.Time       `json:"occurredAt"`             // Append time; both halves of a transfer share it
	Note          string          `json:"note,omitempty"`
}

// SignedAmount returns the amount with the sign the kind implies for the
// owning account's balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Kind.Credits() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Transfer is the paired result of moving money between two accounts:
// a transfer_out entry on the source and a transfer_in entry on the
// destination, sharing one timestamp and recording each other as
// counterparty.
type Transfer struct {
	Outgoing Transaction `json:"outgoing"`
	Incoming Transaction `json:"incoming"`
}
