package domain_test

import (
	"testing"

	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionKind_IsValid(t *testing.T) {
	tests := []struct {
		name string
		kind domain.TransactionKind
		want bool
	}{
		{name: "deposit", kind: domain.KindDeposit, want: true},
		{name: "withdraw", kind: domain.KindWithdraw, want: true},
		{name: "transfer out", kind: domain.KindTransferOut, want: true},
		{name: "transfer in", kind: domain.KindTransferIn, want: true},
		{name: "empty", kind: domain.TransactionKind(""), want: false},
		{name: "unknown", kind: domain.TransactionKind("refund"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.IsValid())
		})
	}
}

func TestTransaction_SignedAmount(t *testing.T) {
	amount := decimal.NewFromFloat(25.50)

	tests := []struct {
		name string
		kind domain.TransactionKind
		want decimal.Decimal
	}{
		{name: "deposit credits", kind: domain.KindDeposit, want: amount},
		{name: "transfer in credits", kind: domain.KindTransferIn, want: amount},
		{name: "withdraw debits", kind: domain.KindWithdraw, want: amount.Neg()},
		{name: "transfer out debits", kind: domain.KindTransferOut, want: amount.Neg()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := domain.Transaction{Kind: tt.kind, Amount: amount}
			assert.True(t, tt.want.Equal(txn.SignedAmount()),
				"want %s, got %s", tt.want, txn.SignedAmount())
		})
	}
}
