package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/passbookhq/passbook/internal/apperrors"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/dto"
	"github.com/passbookhq/passbook/internal/middleware"
	"github.com/passbookhq/passbook/internal/platform/config"
	"github.com/passbookhq/passbook/internal/utils"
)

// AuthHandler handles authentication related requests.
type AuthHandler struct {
	ledgerService portssvc.LedgerAuthenticatorSvc
	jwtSecret     string
	jwtDuration   time.Duration
	jwtIssuer     string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(ls portssvc.LedgerAuthenticatorSvc, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		ledgerService: ls,
		jwtSecret:     cfg.JWTSecret,
		jwtDuration:   cfg.JWTExpiryDuration,
		jwtIssuer:     cfg.JWTIssuer,
	}
}

// ErrorResponse is a generic error response structure for handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// registerAuthRoutes sets up the routes for authentication.
func registerAuthRoutes(r *gin.Engine, cfg *config.Config, ledgerService portssvc.LedgerAuthenticatorSvc) {
	h := NewAuthHandler(ledgerService, cfg)

	// Rate limit login attempts by client IP; PIN guessing gets expensive fast.
	rate, err := limiter.NewRateFromFormatted(cfg.LoginRateLimit)
	if err != nil {
		rate, _ = limiter.NewRateFromFormatted("10-M")
	}
	ipLimiter := limiter.New(memory.NewStore(), rate)

	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", middleware.RateLimit(ipLimiter), h.Login)
	}
}

// Login godoc
// @Summary Account login
// @Description Authenticates an account number and PIN pair and returns a JWT session token.
// @Tags auth
// @Accept json
// @Produce json
// @Param login body dto.LoginRequest true "Login Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	account, err := h.ledgerService.Authenticate(c.Request.Context(), req.AccountNumber, req.PIN)
	if err != nil {
		// One generic message for both an unknown account and a wrong PIN,
		// so login cannot be used to probe which numbers exist.
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid account number or PIN"})
			return
		}
		logger := middleware.GetLoggerFromCtx(c.Request.Context())
		logger.Error("Failed to authenticate account", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to log in"})
		return
	}

	token, err := utils.GenerateJWT(account.AccountNumber, h.jwtSecret, h.jwtDuration, h.jwtIssuer)
	if err != nil {
		logger := middleware.GetLoggerFromCtx(c.Request.Context())
		logger.Error("Failed to sign JWT token", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:         token,
		AccountNumber: account.AccountNumber,
		DisplayName:   account.DisplayName,
	})
}
