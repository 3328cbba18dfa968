package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbookhq/passbook/internal/apperrors"
	"github.com/passbookhq/passbook/internal/core/domain"
	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	"github.com/passbookhq/passbook/internal/models"
	"github.com/passbookhq/passbook/internal/utils/pagination"
	"github.com/shopspring/decimal"
)

const accountColumns = "account_number, display_name, pin_hash, balance, created_at, updated_at"

type PgxAccountRepository struct {
	BaseRepository
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) *PgxAccountRepository {
	return &PgxAccountRepository{BaseRepository{Pool: pool}}
}

// Ensure PgxAccountRepository implements portsrepo.AccountRepositoryWithTx
var _ portsrepo.AccountRepositoryWithTx = (*PgxAccountRepository)(nil)

// Helper to convert domain.Account to models.Account for DB storage
func toModelAccount(d domain.Account) models.Account {
	return models.Account{
		AccountNumber: d.AccountNumber,
		DisplayName:   d.DisplayName,
		PINHash:       d.PINHash,
		Balance:       d.Balance,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Helper to convert models.Account from DB to domain.Account
func toDomainAccount(m models.Account) domain.Account {
	return domain.Account{
		AccountNumber: m.AccountNumber,
		DisplayName:   m.DisplayName,
		PINHash:       m.PINHash,
		Balance:       m.Balance,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var m models.Account
	err := row.Scan(
		&m.AccountNumber,
		&m.DisplayName,
		&m.PINHash,
		&m.Balance,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

// SaveAccountInTx inserts a new account within the given transaction. A
// unique violation on the account number surfaces as apperrors.ErrDuplicate
// so the caller can retry with a fresh number.
func (r *PgxAccountRepository) SaveAccountInTx(ctx context.Context, tx pgx.Tx, account domain.Account) error {
	modelAcc := toModelAccount(account)

	query := `
		INSERT INTO accounts (account_number, display_name, pin_hash, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	_, err := tx.Exec(ctx, query,
		modelAcc.AccountNumber,
		modelAcc.DisplayName,
		modelAcc.PINHash,
		modelAcc.Balance,
		modelAcc.CreatedAt,
		modelAcc.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return fmt.Errorf("%w: account number %s already exists", apperrors.ErrDuplicate, modelAcc.AccountNumber)
		}
		return fmt.Errorf("failed to save account %s: %w", modelAcc.AccountNumber, err)
	}
	return nil
}

// FindAccountByNumber retrieves an account by its account number.
func (r *PgxAccountRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE account_number = $1;
	`

	modelAcc, err := scanAccount(r.Pool.QueryRow(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account %s: %w", accountNumber, err)
	}

	domainAcc := toDomainAccount(modelAcc)
	return &domainAcc, nil
}

// FindAccountsForUpdate retrieves accounts by number and locks the rows for
// the duration of the transaction. Locks are taken in ascending account
// number order so that two operations touching the same pair of accounts
// always acquire them in the same order, whatever direction money flows.
func (r *PgxAccountRepository) FindAccountsForUpdate(ctx context.Context, tx pgx.Tx, accountNumbers []string) (map[string]domain.Account, error) {
	if len(accountNumbers) == 0 {
		return map[string]domain.Account{}, nil
	}

	ordered := make([]string, len(accountNumbers))
	copy(ordered, accountNumbers)
	sort.Strings(ordered)

	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE account_number = ANY($1)
		ORDER BY account_number
		FOR UPDATE;
	`

	rows, err := tx.Query(ctx, query, ordered)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for update: %w", err)
	}
	defer rows.Close()

	accountsMap := make(map[string]domain.Account)
	for rows.Next() {
		modelAcc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan locked account row: %w", err)
		}
		accountsMap[modelAcc.AccountNumber] = toDomainAccount(modelAcc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locked account rows: %w", err)
	}

	if len(accountsMap) != len(ordered) {
		missing := []string{}
		for _, number := range ordered {
			if _, found := accountsMap[number]; !found {
				missing = append(missing, number)
			}
		}
		slog.WarnContext(ctx, "Some accounts requested for update lock were not found", "missing_accounts", missing)
		return nil, fmt.Errorf("%w: no such account: %v", apperrors.ErrNotFound, missing)
	}

	return accountsMap, nil
}

// AdjustBalanceInTx atomically adds delta to the stored balance. The funds
// check rides on the UPDATE itself, so no concurrent operation can sneak
// between a read and the write: the row either moves to a non-negative
// balance or does not move at all.
func (r *PgxAccountRepository) AdjustBalanceInTx(ctx context.Context, tx pgx.Tx, accountNumber string, delta decimal.Decimal, now time.Time) error {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = $3
		WHERE account_number = $1 AND balance + $2 >= 0;
	`

	cmdTag, err := tx.Exec(ctx, query, accountNumber, delta, now)
	if err != nil {
		return fmt.Errorf("failed to adjust balance for account %s: %w", accountNumber, err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Zero rows means either the account is gone or the adjustment would
		// go negative. Re-check inside the same transaction to tell the two
		// apart; the row is already locked, so the answer cannot shift under us.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1);`, accountNumber).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account %s after balance adjustment: %w", accountNumber, err)
		}
		if !exists {
			return fmt.Errorf("%w: no such account: %s", apperrors.ErrNotFound, accountNumber)
		}
		return fmt.Errorf("%w: balance of account %s cannot cover %s", apperrors.ErrInsufficientFunds, accountNumber, delta.Neg())
	}

	return nil
}

// UpdateDisplayName renames an account.
func (r *PgxAccountRepository) UpdateDisplayName(ctx context.Context, accountNumber string, displayName string, now time.Time) error {
	query := `
		UPDATE accounts
		SET display_name = $2, updated_at = $3
		WHERE account_number = $1;
	`

	cmdTag, err := r.Pool.Exec(ctx, query, accountNumber, displayName, now)
	if err != nil {
		return fmt.Errorf("failed to rename account %s: %w", accountNumber, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteAccountInTx removes the account row within the given transaction.
// The caller purges the account's ledger entries in the same transaction
// first; the foreign key makes the other order impossible.
func (r *PgxAccountRepository) DeleteAccountInTx(ctx context.Context, tx pgx.Tx, accountNumber string) error {
	cmdTag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE account_number = $1;`, accountNumber)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", accountNumber, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListAccounts retrieves one page of accounts matching the optional filter
// substring, newest first. Pagination is keyset-based on
// (created_at, account_number), so pages stay stable while rows are inserted
// and every call reads current data.
func (r *PgxAccountRepository) ListAccounts(ctx context.Context, filter string, limit int, nextToken *string) ([]domain.Account, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	fetchLimit := limit + 1 // Fetch one extra row to detect whether a next page exists

	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE ($1 = '' OR account_number ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%')
	`
	args := []interface{}{filter}

	if nextToken != nil && *nextToken != "" {
		cursorCreatedAt, cursorNumber, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		query += ` AND (created_at, account_number) < ($2, $3)`
		args = append(args, cursorCreatedAt, cursorNumber)
	}

	query += fmt.Sprintf(`
		ORDER BY created_at DESC, account_number DESC
		LIMIT %d;
	`, fetchLimit)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		modelAcc, err := scanAccount(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, toDomainAccount(modelAcc))
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	var newNextToken *string
	if len(accounts) == fetchLimit {
		accounts = accounts[:limit]
		last := accounts[limit-1]
		token := pagination.EncodeCursor(last.CreatedAt, last.AccountNumber)
		newNextToken = &token
	}

	return accounts, newNextToken, nil
}
