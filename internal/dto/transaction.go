package dto

import (
	"time"

	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DepositRequest defines the body for crediting an account.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"` // Must be positive; enforced by the ledger service
	Note   string          `json:"note"`
}

// WithdrawRequest defines the body for debiting an account.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Note   string          `json:"note"`
}

// TransferRequest defines the body for moving money to another account.
type TransferRequest struct {
	ToAccountNumber string          `json:"toAccountNumber" binding:"required,numeric"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Note            string          `json:"note"`
}

// TransactionResponse defines the data returned for a ledger entry.
type TransactionResponse struct {
	TxID          int64           `json:"txID"`
	AccountNumber string          `json:"accountNumber"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Counterparty  string          `json:"counterparty,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Note          string          `json:"note,omitempty"`
}

// TransferResponse pairs the two entries a transfer produced.
type TransferResponse struct {
	Outgoing TransactionResponse `json:"outgoing"`
	Incoming TransactionResponse `json:"incoming"`
}

// HistoryParams defines query parameters for reading an account's history.
type HistoryParams struct {
	Limit int `form:"limit"`
}

// HistoryResponse wraps an account's ledger entries, newest first.
type HistoryResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// ConsistencyResponse reports the stored balance against the balance
// recomputed from the ledger.
type ConsistencyResponse struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	LedgerTotal   decimal.Decimal `json:"ledgerTotal"`
	Consistent    bool            `json:"consistent"`
}

// ToTransactionResponse converts a domain.Transaction to TransactionResponse DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TxID:          txn.TxID,
		AccountNumber: txn.AccountNumber,
		Kind:          string(txn.Kind),
		Amount:        txn.Amount,
		Counterparty:  txn.Counterparty,
		OccurredAt:    txn.OccurredAt,
		Note:          txn.Note,
	}
}

// ToTransactionResponses converts a slice of domain.Transaction to []TransactionResponse.
func ToTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	responses := make([]TransactionResponse, len(txns))
	for i, txn := range txns {
		responses[i] = ToTransactionResponse(&txn)
	}
	return responses
}

// ToTransferResponse converts a domain.Transfer to TransferResponse DTO.
func ToTransferResponse(tr *domain.Transfer) TransferResponse {
	return TransferResponse{
		Outgoing: ToTransactionResponse(&tr.Outgoing),
		Incoming: ToTransactionResponse(&tr.Incoming),
	}
}
