package services

import (
	"context"

	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/passbookhq/passbook/internal/dto"
)

// AccountReaderSvc defines read operations for account data
type AccountReaderSvc interface {
	// GetAccount retrieves a specific account by its account number.
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)

	// ListAccounts retrieves a filtered, cursor-paginated list of accounts,
	// newest first.
	ListAccounts(ctx context.Context, params dto.ListAccountsParams) (*dto.ListAccountsResponse, error)
}

// AccountWriterSvc defines the account-admin mutations that do not touch
// balances or the ledger.
type AccountWriterSvc interface {
	// UpdateDisplayName renames an account.
	UpdateDisplayName(ctx context.Context, accountNumber string, req dto.UpdateAccountRequest) (*domain.Account, error)
}

// AccountSvcFacade combines all account-related service interfaces
// This is a facade for clients that need access to all operations
type AccountSvcFacade interface {
	AccountReaderSvc
	AccountWriterSvc
}
