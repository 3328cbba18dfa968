package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a ledger entry row as stored in the database.
// Counterparty and Note are pointers because the columns are nullable.
type Transaction struct {
	TxID          int64           `db:"tx_id"`
	AccountNumber string          `db:"account_number"`
	Kind          string          `db:"kind"`
	Amount        decimal.Decimal `db:"amount"`
	Counterparty  *string         `db:"counterparty"`
	OccurredAt    time.Time       `db:"occurred_at"`
	Note          *string         `db:"note"`
}
