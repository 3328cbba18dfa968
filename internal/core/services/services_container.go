package services

import (
	"log"

	portsrepo "github.com/passbookhq/passbook/internal/core/ports/repositories"
	portssvc "github.com/passbookhq/passbook/internal/core/ports/services"
	"github.com/passbookhq/passbook/internal/platform/config"
	"github.com/passbookhq/passbook/internal/utils"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos *portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	hasher, err := utils.NewPINHasher(cfg.PINHashScheme)
	if err != nil {
		// LoadConfig validates the scheme, so this only trips on a config
		// built by hand.
		log.Fatalf("invalid PIN hash scheme %q: %v", cfg.PINHashScheme, err)
	}

	container.Ledger = NewLedgerService(
		repos.AccountRepo,
		repos.TransactionRepo,
		WithPINHasher(hasher),
		WithHistoryDefaultLimit(cfg.HistoryDefaultLimit),
	)
	container.Account = NewAccountService(repos.AccountRepo)
	container.Reporting = NewReportingService(repos.AccountRepo, repos.TransactionRepo)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.LedgerSvcFacade  = (*ledgerService)(nil)
	_ portssvc.AccountSvcFacade = (*accountService)(nil)
	_ portssvc.ReportingService = (*reportingService)(nil)
)
