package handlers

import (
	"github.com/gin-gonic/gin"

	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/middleware"
	"github.com/passbookhq/passbook/internal/platform/config"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {

	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	// Register public authentication routes
	registerAuthRoutes(r, cfg, services.Ledger)

	// Setup API v1 routes
	setupAPIV1Routes(r, cfg, services)
}

// setupAPIV1Routes configures the /api/v1 surface: the public account routes
// and the session-guarded single-account routes.
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	// Opening a passbook and browsing the registry need no session; nobody
	// holds a token before holding an account.
	public := r.Group("/api/v1")

	// Everything under a concrete account requires a session whose subject
	// matches the account number in the path.
	owned := r.Group("/api/v1/accounts/:accountNumber",
		middleware.AuthMiddleware(cfg.JWTSecret),
		middleware.AccountOwnership(),
	)

	registerAccountRoutes(public, owned, services.Ledger, services.Account)
	registerLedgerRoutes(owned, services.Ledger)
	registerReportingRoutes(owned, services.Reporting)
}
