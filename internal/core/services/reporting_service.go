package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/passbookhq/passbook/internal/apperrors"
	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/dto"
	"github.com/passbookhq/passbook/internal/middleware"
)

// csvHeader is the fixed column set of a history export.
var csvHeader = []string{"id", "account_no", "type", "amount", "counterparty", "timestamp", "note"}

// reportingService provides read-only exports and checks over the ledger.
type reportingService struct {
	accountRepo portsrepo.AccountReader
	txnRepo     portsrepo.TransactionReader
}

// NewReportingService creates a new reporting service.
func NewReportingService(accountRepo portsrepo.AccountReader, txnRepo portsrepo.TransactionReader) portssvc.ReportingService {
	return &reportingService{accountRepo: accountRepo, txnRepo: txnRepo}
}

// Ensure reportingService implements the ReportingService interface
var _ portssvc.ReportingService = (*reportingService)(nil)

// ExportTransactionsCSV writes the account's complete history to w as CSV,
// newest first, and reports the number of data rows written.
func (s *reportingService) ExportTransactionsCSV(ctx context.Context, accountNumber string, w io.Writer) (int, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if _, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find account for export", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return 0, classifyStorage(err)
	}

	// Zero limit asks the repository for the complete history: exports never
	// truncate.
	transactions, err := s.txnRepo.ListTransactionsByAccount(ctx, accountNumber, 0)
	if err != nil {
		logger.Error("Failed to list ledger entries for export", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		return 0, classifyStorage(err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, txn := range transactions {
		record := []string{
			strconv.FormatInt(txn.TxID, 10),
			txn.AccountNumber,
			string(txn.Kind),
			txn.Amount.StringFixed(2),
			txn.Counterparty,
			txn.OccurredAt.UTC().Format(time.RFC3339),
			txn.Note,
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}

	logger.Info("History exported as CSV", slog.String("account_number", accountNumber), slog.Int("rows", len(transactions)))
	return len(transactions), nil
}

// RenderReceipt renders one ledger entry belonging to the account as a small
// labeled plain-text document.
func (s *reportingService) RenderReceipt(ctx context.Context, accountNumber string, txID int64) (string, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	txn, err := s.txnRepo.FindTransactionByID(ctx, txID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find ledger entry for receipt", slog.String("error", err.Error()), slog.Int64("tx_id", txID))
		}
		return "", classifyStorage(err)
	}
	if txn.AccountNumber != accountNumber {
		return "", apperrors.ErrNotFound // Obscure existence from other accounts
	}

	var b strings.Builder
	b.WriteString("========= PASSBOOK RECEIPT =========\n")
	fmt.Fprintf(&b, "%-14s%d\n", "Entry:", txn.TxID)
	fmt.Fprintf(&b, "%-14s%s\n", "Account:", txn.AccountNumber)
	fmt.Fprintf(&b, "%-14s%s\n", "Type:", txn.Kind)
	fmt.Fprintf(&b, "%-14s%s\n", "Amount:", txn.SignedAmount().StringFixed(2))
	if txn.Counterparty != "" {
		fmt.Fprintf(&b, "%-14s%s\n", "Counterparty:", txn.Counterparty)
	}
	fmt.Fprintf(&b, "%-14s%s\n", "Date:", txn.OccurredAt.UTC().Format(time.RFC3339))
	if txn.Note != "" {
		fmt.Fprintf(&b, "%-14s%s\n", "Note:", txn.Note)
	}
	b.WriteString("====================================\n")

	return b.String(), nil
}

// VerifyConsistency recomputes the account's balance from its ledger entries
// and compares it against the stored balance. The two reads are separate
// point-in-time queries, so a movement landing between them can flag a
// transient mismatch; re-query to confirm before treating one as corruption.
func (s *reportingService) VerifyConsistency(ctx context.Context, accountNumber string) (*dto.ConsistencyResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	account, err := s.accountRepo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find account for consistency check", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		}
		return nil, classifyStorage(err)
	}

	total, err := s.txnRepo.SumAmountsByAccount(ctx, accountNumber)
	if err != nil {
		logger.Error("Failed to sum ledger entries", slog.String("error", err.Error()), slog.String("account_number", accountNumber))
		return nil, classifyStorage(err)
	}

	resp := &dto.ConsistencyResponse{
		AccountNumber: accountNumber,
		Balance:       account.Balance,
		LedgerTotal:   total,
		Consistent:    account.Balance.Equal(total),
	}

	if !resp.Consistent {
		logger.Warn("Stored balance does not match ledger total",
			slog.String("account_number", accountNumber),
			slog.String("balance", account.Balance.String()),
			slog.String("ledger_total", total.String()))
	}

	return resp, nil
}
