package repository

import (
	"github.com/rxledger/statements/internal/billingsource"
	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/domain/organization"
	"github.com/rxledger/statements/internal/domain/patient"
	"github.com/rxledger/statements/internal/domain/statement"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	billingRepo "github.com/rxledger/statements/internal/repository/billingsource"
	postgresRepo "github.com/rxledger/statements/internal/repository/postgres"
)

func NewStatementRepository(db *postgres.DB, logger *logger.Logger) statement.Repository {
	return postgresRepo.NewStatementRepository(db, logger)
}

func NewOrganizationRepository(db *postgres.DB, logger *logger.Logger) organization.Repository {
	return postgresRepo.NewOrganizationRepository(db, logger)
}

func NewPatientRepository(db *postgres.DB, logger *logger.Logger) patient.Repository {
	return postgresRepo.NewPatientRepository(db, logger)
}

func NewBillingStore(store *billingsource.Store, logger *logger.Logger) billing.Store {
	return billingRepo.NewBillingStore(store, logger)
}
