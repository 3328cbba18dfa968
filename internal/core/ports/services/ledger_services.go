package services

import (
	"context"

	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/passbookhq/passbook/internal/dto"
	"github.com/shopspring/decimal"
)

// LedgerMutatorSvc defines the balance-mutating ledger operations. Each one
// executes as a single atomic unit: the balance change and its ledger
// append(s) commit or roll back together.
type LedgerMutatorSvc interface {
	// CreateAccount allocates a fresh account number, hashes the PIN, and
	// persists the account. A positive initial deposit is recorded as the
	// account's first ledger entry in the same unit.
	CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*domain.Account, error)

	// Deposit credits the account and appends a deposit entry.
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal, note string) (*domain.Transaction, error)

	// Withdraw debits the account and appends a withdraw entry. The funds
	// check happens atomically with the debit, never against an earlier read.
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal, note string) (*domain.Transaction, error)

	// Transfer debits one account, credits the other, and appends the paired
	// transfer entries, all in one unit. Both entries share one timestamp.
	Transfer(ctx context.Context, fromNumber, toNumber string, amount decimal.Decimal, note string) (*domain.Transfer, error)

	// DeleteAccount removes the account together with its entire ledger
	// history. No orphaned entries remain.
	DeleteAccount(ctx context.Context, accountNumber string) error
}

// LedgerAuthenticatorSvc verifies account credentials.
type LedgerAuthenticatorSvc interface {
	// Authenticate checks the PIN against the stored digest. It reports
	// a missing account (apperrors.ErrNotFound) and a wrong PIN
	// (apperrors.ErrAuthFailed) as distinct failures; collapsing the two for
	// untrusted callers is the presentation layer's job.
	Authenticate(ctx context.Context, accountNumber, pin string) (*domain.Account, error)
}

// LedgerReaderSvc defines read operations over the ledger.
type LedgerReaderSvc interface {
	// GetHistory retrieves the account's entries, newest first. A limit of
	// zero or less falls back to the configured default.
	GetHistory(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error)

	// GetTransaction retrieves one entry belonging to the account.
	GetTransaction(ctx context.Context, accountNumber string, txID int64) (*domain.Transaction, error)
}

// LedgerSvcFacade combines all ledger service interfaces
// This is a facade for clients that need access to all operations
type LedgerSvcFacade interface {
	LedgerMutatorSvc
	LedgerAuthenticatorSvc
	LedgerReaderSvc
}
