package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/passbookhq/passbook/internal/apperrors"
	"github.com/passbookhq/passbook/internal/core/domain"
	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/dto"
	"github.com/passbookhq/passbook/internal/middleware"
)

// accountService provides the account read and admin operations that do not
// touch balances or the ledger.
type accountService struct {
	accountRepo portsrepo.AccountRepositoryFacade
}

// NewAccountService creates a new account service.
func NewAccountService(repo portsrepo.AccountRepositoryFacade) portssvc.AccountSvcFacade {
	return &accountService{accountRepo: repo}
}

// Ensure accountService implements the AccountSvcFacade interface
var _ portssvc.AccountSvcFacade = (*accountService)(nil)

// GetAccount retrieves an account by its account number.
func (s *accountService) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	account, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find account", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return nil, classifyStorage(err)
	}

	logger.Debug("Account retrieved", slog.String("account_number", account.AccountNumber))
	return account, nil
}

// ListAccounts retrieves a filtered, cursor-paginated page of accounts,
// newest first.
func (s *accountService) ListAccounts(ctx context.Context, params dto.ListAccountsParams) (*dto.ListAccountsResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	limit := params.Limit
	if limit <= 0 {
		limit = 20 // Default limit
	}

	accounts, nextToken, err := s.accountRepo.ListAccounts(ctx, strings.TrimSpace(params.Filter), limit, params.NextToken)
	if err != nil {
		if !errors.Is(err, apperrors.ErrValidation) {
			logger.Error("Failed to list accounts", slog.String("error", err.Error()), slog.Int("limit", limit))
		}
		return nil, classifyStorage(err)
	}

	resp := &dto.ListAccountsResponse{
		Accounts:  dto.ToListAccountResponse(accounts),
		NextToken: nextToken,
	}

	logger.Debug("Accounts listed", slog.Int("count", len(accounts)))
	return resp, nil
}

// UpdateDisplayName renames an account and returns the updated record.
func (s *accountService) UpdateDisplayName(ctx context.Context, accountNumber string, req dto.UpdateAccountRequest) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name must not be empty", apperrors.ErrValidation)
	}

	account, err := s.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err // GetAccount already logs unexpected errors
	}

	now := time.Now().UTC()
	if err := s.accountRepo.UpdateDisplayName(ctx, accountNumber, displayName, now); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to rename account", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return nil, classifyStorage(err)
	}

	account.DisplayName = displayName
	account.UpdatedAt = now

	logger.Info("Account renamed", slog.String("account_number", accountNumber))
	return account, nil
}
