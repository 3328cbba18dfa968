package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents an account row as stored in the database.
type Account struct {
	AccountNumber string          `db:"account_number"`
	DisplayName   string          `db:"display_name"`
	PINHash       string          `db:"pin_hash"`
	Balance       decimal.Decimal `db:"balance"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
