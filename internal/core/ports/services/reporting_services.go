package services

import (
	"context"
	"io"

	"github.com/passbookhq/passbook/internal/dto"
)

// ReportingService defines the read-only export and verification surface.
// Nothing here mutates balances or the ledger.
type ReportingService interface {
	// ExportTransactionsCSV writes the account's full history to w as CSV,
	// newest first, and reports the number of data rows written.
	ExportTransactionsCSV(ctx context.Context, accountNumber string, w io.Writer) (int, error)

	// RenderReceipt renders a single ledger entry as a small labeled
	// plain-text document.
	RenderReceipt(ctx context.Context, accountNumber string, txID int64) (string, error)

	// VerifyConsistency recomputes the account's balance from its ledger
	// entries and compares it against the stored balance.
	VerifyConsistency(ctx context.Context, accountNumber string) (*dto.ConsistencyResponse, error)
}
