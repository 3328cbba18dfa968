package dto

import (
	"time"

	"github.com/passbookhq/passbook/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest defines the data needed to open a new account.
type CreateAccountRequest struct {
	DisplayName    string          `json:"displayName" binding:"required"`
	PIN            string          `json:"pin" binding:"required,numeric,min=4,max=12"`
	InitialDeposit decimal.Decimal `json:"initialDeposit"` // Optional; must not be negative
}

// AccountResponse defines the data returned for an account.
// Mirrors domain.Account; the PIN digest is never exposed.
type AccountResponse struct {
	AccountNumber string          `json:"accountNumber"`
	DisplayName   string          `json:"displayName"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UpdateAccountRequest defines the data allowed for updating an account.
type UpdateAccountRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: acc.AccountNumber,
		DisplayName:   acc.DisplayName,
		Balance:       acc.Balance,
		CreatedAt:     acc.CreatedAt,
		UpdatedAt:     acc.UpdatedAt,
	}
}

// ToListAccountResponse converts a slice of domain.Account to a slice of AccountResponse DTOs
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i, acc := range accounts {
		res[i] = ToAccountResponse(&acc) // Reuse the single converter
	}
	return res
}

// ListAccountsParams defines query parameters for listing accounts.
type ListAccountsParams struct {
	// Filter matches as a substring of the account number or display name.
	Filter    string  `form:"filter"`
	Limit     int     `form:"limit,default=20"`
	NextToken *string `form:"nextToken"`
}

// ListAccountsResponse wraps a page of accounts plus the cursor for the next
// page, when one exists.
type ListAccountsResponse struct {
	Accounts  []AccountResponse `json:"accounts"`
	NextToken *string           `json:"nextToken,omitempty"`
}
