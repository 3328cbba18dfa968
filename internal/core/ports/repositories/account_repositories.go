package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountReader defines read operations for account data
type AccountReader interface {
	// FindAccountByNumber retrieves a specific account by its account number.
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)

	// ListAccounts retrieves a page of accounts whose number or display name
	// contains the filter substring (all accounts when the filter is empty),
	// ordered by creation time descending. It returns the page and, when more
	// rows remain, a keyset token for the next page.
	ListAccounts(ctx context.Context, filter string, limit int, nextToken *string) ([]domain.Account, *string, error)
}

// AccountWriter defines write operations for account data that stand alone
// as their own atomic unit.
type AccountWriter interface {
	// UpdateDisplayName renames an account.
	UpdateDisplayName(ctx context.Context, accountNumber string, displayName string, now time.Time) error
}

// AccountTransactionSupport defines the operations that participate in a
// ledger transaction. Every method runs against the supplied pgx.Tx so the
// caller controls the commit/abort boundary.
type AccountTransactionSupport interface {
	// SaveAccountInTx persists a new account within the transaction.
	// Account number collisions surface as apperrors.ErrDuplicate.
	SaveAccountInTx(ctx context.Context, tx pgx.Tx, account domain.Account) error

	// FindAccountsForUpdate selects accounts and locks their rows for the
	// duration of the transaction. Rows are locked in ascending account
	// number order regardless of the order requested.
	FindAccountsForUpdate(ctx context.Context, tx pgx.Tx, accountNumbers []string) (map[string]domain.Account, error)

	// AdjustBalanceInTx atomically adds delta (which may be negative) to the
	// stored balance. A result that would go negative fails with
	// apperrors.ErrInsufficientFunds and leaves the balance unchanged.
	AdjustBalanceInTx(ctx context.Context, tx pgx.Tx, accountNumber string, delta decimal.Decimal, now time.Time) error

	// DeleteAccountInTx removes the account row within the transaction.
	DeleteAccountInTx(ctx context.Context, tx pgx.Tx, accountNumber string) error
}

// AccountRepositoryFacade combines all account-related repository interfaces
// This is a facade for clients that need access to all operations
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
	AccountTransactionSupport
}

// AccountRepositoryWithTx extends AccountRepositoryFacade with transaction capabilities
type AccountRepositoryWithTx interface {
	AccountRepositoryFacade
	TransactionManager
}
