package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbookhq/passbook/internal/apperrors"
	"github.com/passbookhq/passbook/internal/core/domain"
	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	"github.com/passbookhq/passbook/internal/models"
	"github.com/shopspring/decimal"
)

const transactionColumns = "tx_id, account_number, kind, amount, counterparty, occurred_at, note"

type PgxTransactionRepository struct {
	BaseRepository
}

// newPgxTransactionRepository creates a new repository for ledger entries.
func newPgxTransactionRepository(pool *pgxpool.Pool) *PgxTransactionRepository {
	return &PgxTransactionRepository{BaseRepository{Pool: pool}}
}

// Ensure PgxTransactionRepository implements portsrepo.TransactionRepositoryWithTx
var _ portsrepo.TransactionRepositoryWithTx = (*PgxTransactionRepository)(nil)

// Helper to convert domain.Transaction to models.Transaction for DB storage
func toModelTransaction(d domain.Transaction) models.Transaction {
	m := models.Transaction{
		TxID:          d.TxID,
		AccountNumber: d.AccountNumber,
		Kind:          string(d.Kind),
		Amount:        d.Amount,
		OccurredAt:    d.OccurredAt,
	}
	if d.Counterparty != "" {
		counterparty := d.Counterparty
		m.Counterparty = &counterparty
	}
	if d.Note != "" {
		note := d.Note
		m.Note = &note
	}
	return m
}

// Helper to convert models.Transaction from DB to domain.Transaction
func toDomainTransaction(m models.Transaction) domain.Transaction {
	d := domain.Transaction{
		TxID:          m.TxID,
		AccountNumber: m.AccountNumber,
		Kind:          domain.TransactionKind(m.Kind),
		Amount:        m.Amount,
		OccurredAt:    m.OccurredAt,
	}
	if m.Counterparty != nil {
		d.Counterparty = *m.Counterparty
	}
	if m.Note != nil {
		d.Note = *m.Note
	}
	return d
}

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var m models.Transaction
	err := row.Scan(
		&m.TxID,
		&m.AccountNumber,
		&m.Kind,
		&m.Amount,
		&m.Counterparty,
		&m.OccurredAt,
		&m.Note,
	)
	return m, err
}

// AppendTransactionInTx appends one ledger entry within the given transaction
// and returns the generated entry ID. Entries are insert-only; no update or
// single-row delete exists on this table.
func (r *PgxTransactionRepository) AppendTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction) (int64, error) {
	modelTxn := toModelTransaction(txn)

	query := `
		INSERT INTO transactions (account_number, kind, amount, counterparty, occurred_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING tx_id;
	`

	var txID int64
	err := tx.QueryRow(ctx, query,
		modelTxn.AccountNumber,
		modelTxn.Kind,
		modelTxn.Amount,
		modelTxn.Counterparty,
		modelTxn.OccurredAt,
		modelTxn.Note,
	).Scan(&txID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // Foreign key violation
			return 0, fmt.Errorf("%w: no such account: %s", apperrors.ErrNotFound, modelTxn.AccountNumber)
		}
		return 0, fmt.Errorf("failed to append ledger entry for account %s: %w", modelTxn.AccountNumber, err)
	}

	return txID, nil
}

// ListTransactionsByAccount retrieves ledger entries for an account, newest
// first. Entries sharing a timestamp (the two legs of a transfer) are ordered
// by entry ID so the listing is deterministic. A non-positive limit returns
// the full history.
func (r *PgxTransactionRepository) ListTransactionsByAccount(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_number = $1
		ORDER BY occurred_at DESC, tx_id DESC
	`
	args := []interface{}{accountNumber}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.Pool.Query(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries for account %s: %w", accountNumber, err)
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		modelTxn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}
		transactions = append(transactions, toDomainTransaction(modelTxn))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}

	return transactions, nil
}

// FindTransactionByID retrieves a single ledger entry by its ID.
func (r *PgxTransactionRepository) FindTransactionByID(ctx context.Context, txID int64) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tx_id = $1;
	`

	modelTxn, err := scanTransaction(r.Pool.QueryRow(ctx, query, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ledger entry %d: %w", txID, err)
	}

	domainTxn := toDomainTransaction(modelTxn)
	return &domainTxn, nil
}

// SumAmountsByAccount computes the signed sum of all ledger entries for an
// account: credits count positive, debits negative. For a consistent ledger
// the result equals the stored balance.
func (r *PgxTransactionRepository) SumAmountsByAccount(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind IN ('deposit', 'transfer_in') THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE account_number = $1;
	`

	var total decimal.Decimal
	if err := r.Pool.QueryRow(ctx, query, accountNumber).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries for account %s: %w", accountNumber, err)
	}

	return total, nil
}

// DeleteTransactionsByAccountInTx purges the full history of an account
// within the given transaction, returning the number of entries removed.
// Zero is not an error: an account with no activity has nothing to purge.
func (r *PgxTransactionRepository) DeleteTransactionsByAccountInTx(ctx context.Context, tx pgx.Tx, accountNumber string) (int64, error) {
	cmdTag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE account_number = $1;`, accountNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to purge ledger entries for account %s: %w", accountNumber, err)
	}

	return cmdTag.RowsAffected(), nil
}
