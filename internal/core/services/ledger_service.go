package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/passbookhq/passbook/internal/apperrors"
	"github.com/passbookhq/passbook/internal/core/domain"
	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/dto"
	"github.com/passbookhq/passbook/internal/middleware"
	"github.com/passbookhq/passbook/internal/utils"
)

const (
	// openingDepositNote labels the ledger entry recording a positive
	// opening balance.
	openingDepositNote = "Initial deposit"

	defaultCreateAttempts = 5
	defaultHistoryLimit   = 500

	// Conflict retries re-run a whole atomic unit after the database reports
	// a serialization failure or deadlock. The count excludes the first
	// attempt.
	defaultConflictRetries    = 2
	defaultConflictRetryDelay = 50 * time.Millisecond
)

// ledgerService provides the core passbook operations: account lifecycle,
// PIN authentication, and the money movements that must keep the stored
// balance and the append-only ledger in lockstep.
type ledgerService struct {
	accountRepo         portsrepo.AccountRepositoryWithTx
	txnRepo             portsrepo.TransactionRepositoryWithTx
	hasher              *utils.PINHasher
	createAttempts      int
	historyDefaultLimit int
	conflictRetries     uint64
	conflictRetryDelay  time.Duration
}

// LedgerOption is a functional option for configuring the ledger service
type LedgerOption func(*ledgerService)

// WithPINHasher sets the hasher used for new PIN digests.
func WithPINHasher(hasher *utils.PINHasher) LedgerOption {
	return func(s *ledgerService) {
		s.hasher = hasher
	}
}

// WithHistoryDefaultLimit sets the entry count returned when a history
// request does not specify a limit.
func WithHistoryDefaultLimit(limit int) LedgerOption {
	return func(s *ledgerService) {
		if limit > 0 {
			s.historyDefaultLimit = limit
		}
	}
}

// WithCreateAttempts sets how many fresh account numbers CreateAccount tries
// before giving up.
func WithCreateAttempts(attempts int) LedgerOption {
	return func(s *ledgerService) {
		if attempts > 0 {
			s.createAttempts = attempts
		}
	}
}

// WithConflictRetry tunes the retry policy applied when the database reports
// a transient conflict.
func WithConflictRetry(retries uint64, delay time.Duration) LedgerOption {
	return func(s *ledgerService) {
		s.conflictRetries = retries
		s.conflictRetryDelay = delay
	}
}

// NewLedgerService creates a new ledger service with the provided options.
func NewLedgerService(accountRepo portsrepo.AccountRepositoryWithTx, txnRepo portsrepo.TransactionRepositoryWithTx, options ...LedgerOption) portssvc.LedgerSvcFacade {
	defaultHasher, _ := utils.NewPINHasher(utils.PINSchemeSHA256)
	svc := &ledgerService{
		accountRepo:         accountRepo,
		txnRepo:             txnRepo,
		hasher:              defaultHasher,
		createAttempts:      defaultCreateAttempts,
		historyDefaultLimit: defaultHistoryLimit,
		conflictRetries:     defaultConflictRetries,
		conflictRetryDelay:  defaultConflictRetryDelay,
	}

	for _, option := range options {
		option(svc)
	}

	return svc
}

// Ensure ledgerService implements the LedgerSvcFacade interface
var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// runAtomicUnit executes fn inside a single database transaction: everything
// fn does commits or rolls back together. When the database reports a
// transient conflict the whole unit is re-run a bounded number of times;
// definitive outcomes (validation, missing account, insufficient funds,
// duplicate number) are never retried.
func (s *ledgerService) runAtomicUnit(ctx context.Context, fn func(tx pgx.Tx) error) error {
	attempt := func() error {
		tx, err := s.accountRepo.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if rbErr := s.accountRepo.Rollback(ctx, tx); rbErr != nil {
				middleware.GetLoggerFromCtx(ctx).Error("Failed to roll back ledger transaction", slog.String("error", rbErr.Error()))
			}
		}()

		if err := fn(tx); err != nil {
			return err
		}
		return s.accountRepo.Commit(ctx, tx)
	}

	operation := func() error {
		err := attempt()
		if err == nil {
			return nil
		}
		if isRetryableStorage(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.conflictRetryDelay), s.conflictRetries), ctx)
	return backoff.Retry(operation, policy)
}

// CreateAccount opens a new account under a freshly generated number and
// returns it. A positive initial deposit is recorded as the account's first
// ledger entry in the same atomic unit, so the ledger explains the opening
// balance. Number collisions are resolved by the store's unique constraint:
// on a duplicate the whole unit is retried with a new number, never by
// checking first and inserting later.
func (s *ledgerService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name must not be empty", apperrors.ErrValidation)
	}
	if req.InitialDeposit.IsNegative() {
		return nil, fmt.Errorf("%w: initial deposit must not be negative, got %s", apperrors.ErrValidation, req.InitialDeposit)
	}
	if req.InitialDeposit.Exponent() < -2 {
		return nil, fmt.Errorf("%w: initial deposit must not be finer than cents, got %s", apperrors.ErrValidation, req.InitialDeposit)
	}

	pinHash, err := s.hasher.Hash(req.PIN)
	if err != nil {
		logger.Error("Failed to hash PIN for new account", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	now := time.Now().UTC()

	for attempt := 1; attempt <= s.createAttempts; attempt++ {
		number, err := utils.GenerateAccountNumber(domain.AccountNumberLength)
		if err != nil {
			logger.Error("Failed to generate account number", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to generate account number: %w", err)
		}

		account := domain.Account{
			AccountNumber: number,
			DisplayName:   displayName,
			PINHash:       pinHash,
			Balance:       req.InitialDeposit,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = s.runAtomicUnit(ctx, func(tx pgx.Tx) error {
			if err := s.accountRepo.SaveAccountInTx(ctx, tx, account); err != nil {
				return err
			}
			if account.Balance.IsPositive() {
				opening := domain.Transaction{
					AccountNumber: number,
					Kind:          domain.KindDeposit,
					Amount:        account.Balance,
					OccurredAt:    now,
					Note:          openingDepositNote,
				}
				if _, err := s.txnRepo.AppendTransactionInTx(ctx, tx, opening); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			logger.Info("Account created", slog.String("account_number", number), slog.Int("attempt", attempt))
			return &account, nil
		}
		if errors.Is(err, apperrors.ErrDuplicate) {
			logger.Warn("Generated account number already taken, retrying with a fresh one", slog.Int("attempt", attempt))
			continue
		}

		logger.Error("Failed to create account", slog.String("error", err.Error()))
		return nil, classifyStorage(err)
	}

	// Statistically unreachable while the number space stays sparse; treated
	// as a storage fault rather than a duplicate, which is an internal detail
	// callers cannot act on.
	logger.Error("Exhausted account number generation attempts", slog.Int("attempts", s.createAttempts))
	return nil, fmt.Errorf("%w: could not allocate a unique account number after %d attempts", apperrors.ErrStorage, s.createAttempts)
}

// Authenticate verifies the PIN for an account. A missing account and a
// wrong PIN surface as distinct errors; callers facing untrusted clients
// collapse the two before responding.
func (s *ledgerService) Authenticate(ctx context.Context, accountNumber, pin string) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	account, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to look up account for authentication", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return nil, classifyStorage(err)
	}

	if !s.hasher.Verify(pin, account.PINHash) {
		logger.Warn("PIN verification failed", slog.String("account_number", accountNumber))
		return nil, apperrors.ErrAuthFailed
	}

	logger.Debug("Authentication succeeded", slog.String("account_number", accountNumber))
	return account, nil
}

// Deposit credits the account and appends a deposit entry in one atomic unit.
func (s *ledgerService) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal, note string) (*domain.Transaction, error) {
	return s.recordEntry(ctx, accountNumber, domain.KindDeposit, amount, note)
}

// Withdraw debits the account and appends a withdraw entry in one atomic
// unit. The funds check rides on the balance update itself, so a concurrent
// withdrawal can never overdraw the account.
func (s *ledgerService) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal, note string) (*domain.Transaction, error) {
	return s.recordEntry(ctx, accountNumber, domain.KindWithdraw, amount, note)
}

// recordEntry applies a single-account movement: adjust the balance, append
// the matching ledger entry, commit both together.
func (s *ledgerService) recordEntry(ctx context.Context, accountNumber string, kind domain.TransactionKind, amount decimal.Decimal, note string) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	txn := domain.Transaction{
		AccountNumber: accountNumber,
		Kind:          kind,
		Amount:        amount,
		OccurredAt:    time.Now().UTC(),
		Note:          note,
	}

	err := s.runAtomicUnit(ctx, func(tx pgx.Tx) error {
		if err := s.accountRepo.AdjustBalanceInTx(ctx, tx, accountNumber, txn.SignedAmount(), txn.OccurredAt); err != nil {
			return err
		}
		txID, err := s.txnRepo.AppendTransactionInTx(ctx, tx, txn)
		if err != nil {
			return err
		}
		txn.TxID = txID
		return nil
	})
	if err != nil {
		if !isDefinitiveOutcome(err) {
			logger.Error("Failed to record ledger entry", slog.String("error", err.Error()), slog.String("account_number", accountNumber), slog.String("kind", string(kind)))
		}
		return nil, classifyStorage(err)
	}

	logger.Info("Ledger entry recorded", slog.String("account_number", accountNumber), slog.String("kind", string(kind)), slog.String("amount", amount.String()), slog.Int64("tx_id", txn.TxID))
	return &txn, nil
}

// Transfer moves amount between two accounts as one atomic unit: debit,
// credit, and the paired transfer_out/transfer_in entries all commit or roll
// back together. Both entries carry the same timestamp and name each other's
// account as counterparty. Rows are locked in ascending account number order
// regardless of flow direction, so opposing transfers cannot deadlock.
func (s *ledgerService) Transfer(ctx context.Context, fromNumber, toNumber string, amount decimal.Decimal, note string) (*domain.Transfer, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if fromNumber == toNumber {
		return nil, fmt.Errorf("%w: cannot transfer from an account to itself", apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	outgoing := domain.Transaction{
		AccountNumber: fromNumber,
		Kind:          domain.KindTransferOut,
		Amount:        amount,
		Counterparty:  toNumber,
		OccurredAt:    now,
		Note:          note,
	}
	incoming := domain.Transaction{
		AccountNumber: toNumber,
		Kind:          domain.KindTransferIn,
		Amount:        amount,
		Counterparty:  fromNumber,
		OccurredAt:    now,
		Note:          note,
	}

	err := s.runAtomicUnit(ctx, func(tx pgx.Tx) error {
		if _, err := s.accountRepo.FindAccountsForUpdate(ctx, tx, []string{fromNumber, toNumber}); err != nil {
			return err
		}
		if err := s.accountRepo.AdjustBalanceInTx(ctx, tx, fromNumber, amount.Neg(), now); err != nil {
			return err
		}
		if err := s.accountRepo.AdjustBalanceInTx(ctx, tx, toNumber, amount, now); err != nil {
			return err
		}
		outID, err := s.txnRepo.AppendTransactionInTx(ctx, tx, outgoing)
		if err != nil {
			return err
		}
		inID, err := s.txnRepo.AppendTransactionInTx(ctx, tx, incoming)
		if err != nil {
			return err
		}
		outgoing.TxID = outID
		incoming.TxID = inID
		return nil
	})
	if err != nil {
		if !isDefinitiveOutcome(err) {
			logger.Error("Failed to transfer", slog.String("error", err.Error()), slog.String("from", fromNumber), slog.String("to", toNumber))
		}
		return nil, classifyStorage(err)
	}

	logger.Info("Transfer recorded", slog.String("from", fromNumber), slog.String("to", toNumber), slog.String("amount", amount.String()), slog.Int64("out_tx_id", outgoing.TxID), slog.Int64("in_tx_id", incoming.TxID))
	return &domain.Transfer{Outgoing: outgoing, Incoming: incoming}, nil
}

// DeleteAccount removes the account and purges its entire ledger history in
// one atomic unit, so no orphaned entries survive. Money held by the account
// is forfeited; no fund check applies.
func (s *ledgerService) DeleteAccount(ctx context.Context, accountNumber string) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	var purged int64
	err := s.runAtomicUnit(ctx, func(tx pgx.Tx) error {
		// Lock the row first so no movement can slip in between the history
		// purge and the account delete.
		if _, err := s.accountRepo.FindAccountsForUpdate(ctx, tx, []string{accountNumber}); err != nil {
			return err
		}
		count, err := s.txnRepo.DeleteTransactionsByAccountInTx(ctx, tx, accountNumber)
		if err != nil {
			return err
		}
		purged = count
		return s.accountRepo.DeleteAccountInTx(ctx, tx, accountNumber)
	})
	if err != nil {
		if !isDefinitiveOutcome(err) {
			logger.Error("Failed to delete account", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return classifyStorage(err)
	}

	logger.Info("Account deleted with its ledger history", slog.String("account_number", accountNumber), slog.Int64("purged_entries", purged))
	return nil
}

// GetHistory retrieves the account's ledger entries, newest first. A limit
// of zero or less falls back to the configured default.
func (s *ledgerService) GetHistory(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if _, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find account for history", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return nil, classifyStorage(err)
	}

	if limit <= 0 {
		limit = s.historyDefaultLimit
	}

	transactions, err := s.txnRepo.ListTransactionsByAccount(ctx, accountNumber, limit)
	if err != nil {
		logger.Error("Failed to list ledger entries", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		return nil, classifyStorage(err)
	}

	logger.Debug("History retrieved", slog.String("account_number", accountNumber), slog.Int("count", len(transactions)))
	return transactions, nil
}

// GetTransaction retrieves one ledger entry belonging to the account.
func (s *ledgerService) GetTransaction(ctx context.Context, accountNumber string, txID int64) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	txn, err := s.txnRepo.FindTransactionByID(ctx, txID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find ledger entry", slog.String("error", err.Error()), slog.Int64("tx_id", txID))
		}
		return nil, classifyStorage(err)
	}

	if txn.AccountNumber != accountNumber {
		logger.Debug("Ledger entry belongs to a different account", slog.Int64("tx_id", txID), slog.String("requested_account", accountNumber))
		return nil, apperrors.ErrNotFound // Obscure existence from other accounts
	}

	return txn, nil
}

// validateAmount enforces the two rules every movement amount obeys:
// strictly positive, and no finer than cents. Finer amounts would be rounded
// by the cents-scaled balance column, which could round a small positive
// amount down to zero.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", apperrors.ErrValidation, amount)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: amount must not be finer than cents, got %s", apperrors.ErrValidation, amount)
	}
	return nil
}

// isRetryableStorage reports whether err is a transient conflict the
// database asks the client to retry: a serialization failure (40001) or a
// deadlock (40P01).
func isRetryableStorage(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// isDefinitiveOutcome reports whether err is an expected business outcome
// rather than an infrastructure failure worth an error log.
func isDefinitiveOutcome(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrDuplicate) ||
		errors.Is(err, apperrors.ErrInsufficientFunds) ||
		errors.Is(err, apperrors.ErrAuthFailed)
}

// classifyStorage wraps unclassified infrastructure errors in ErrStorage;
// already-classified outcomes pass through untouched.
func classifyStorage(err error) error {
	if err == nil {
		return nil
	}
	if isDefinitiveOutcome(err) || errors.Is(err, apperrors.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
}
