package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountNumberLength is the fixed width of generated account numbers.
// Ten decimal digits give a 10^10 identifier space, which makes collisions
// during generation rare enough that a short retry loop absorbs them.
const AccountNumberLength = 10

// Account represents a passbook account within the core domain.
// This is the primary representation used by services.
type Account struct {
	AccountNumber string          `json:"accountNumber"` // Primary key; fixed-width numeric string, never reused
	DisplayName   string          `json:"displayName"`   // Human label, mutable
	PINHash       string          `json:"-"`             // One-way digest of the PIN; compared, never reversed
	Balance       decimal.Decimal `json:"balance"`       // Invariant: never negative between operations
	CreatedAt     time.Time       `json:"createdAt"`     // Immutable
	UpdatedAt     time.Time       `json:"updatedAt"`
}
