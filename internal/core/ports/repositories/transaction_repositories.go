package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/shopspring/decimal"
)

// TransactionReader defines read operations over the append-only ledger.
type TransactionReader interface {
	// ListTransactionsByAccount retrieves up to limit entries for the
	// account, newest first (ties broken by tx_id descending). A limit of
	// zero or less returns every entry.
	ListTransactionsByAccount(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error)

	// FindTransactionByID retrieves a single ledger entry.
	FindTransactionByID(ctx context.Context, txID int64) (*domain.Transaction, error)

	// SumAmountsByAccount returns the signed sum of the account's entries
	// (deposits and incoming transfers positive, the rest negative).
	SumAmountsByAccount(ctx context.Context, accountNumber string) (decimal.Decimal, error)
}

// TransactionWriter defines the ledger mutations. Both run inside a caller
// controlled transaction: appends commit together with the balance
// adjustment they justify, and purges commit together with the account
// deletion they accompany.
type TransactionWriter interface {
	// AppendTransactionInTx stores a new ledger entry and returns the tx_id
	// the store assigned to it.
	AppendTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) (int64, error)

	// DeleteTransactionsByAccountInTx removes every entry belonging to the
	// account and reports how many were removed.
	DeleteTransactionsByAccountInTx(ctx context.Context, tx pgx.Tx, accountNumber string) (int64, error)
}

// TransactionRepositoryFacade combines all ledger repository interfaces.
type TransactionRepositoryFacade interface {
	TransactionReader
	TransactionWriter
}

// TransactionRepositoryWithTx extends TransactionRepositoryFacade with
// transaction capabilities.
type TransactionRepositoryWithTx interface {
	TransactionRepositoryFacade
	TransactionManager
}
