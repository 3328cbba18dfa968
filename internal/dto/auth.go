package dto

// LoginRequest defines the credentials for account login.
type LoginRequest struct {
	AccountNumber string `json:"accountNumber" binding:"required,numeric"`
	PIN           string `json:"pin" binding:"required"`
}

// LoginResponse represents the response for a successful login.
type LoginResponse struct {
	Token         string `json:"token"`
	AccountNumber string `json:"accountNumber"`
	DisplayName   string `json:"displayName"`
}
