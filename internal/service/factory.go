package service

import (
	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/domain/organization"
	"github.com/rxledger/statements/internal/domain/patient"
	"github.com/rxledger/statements/internal/domain/statement"
	"github.com/rxledger/statements/internal/email"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/storage"
	"github.com/rxledger/statements/internal/workbook"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	StatementRepo    statement.Repository
	OrganizationRepo organization.Repository
	PatientRepo      patient.Repository
	BillingStore     billing.Store

	// Rendering and delivery
	Renderer    workbook.Renderer
	FileStore   storage.FileStore
	EmailSender email.Sender
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	statementRepo statement.Repository,
	organizationRepo organization.Repository,
	patientRepo patient.Repository,
	billingStore billing.Store,
	renderer workbook.Renderer,
	fileStore storage.FileStore,
	emailSender email.Sender,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		StatementRepo:    statementRepo,
		OrganizationRepo: organizationRepo,
		PatientRepo:      patientRepo,
		BillingStore:     billingStore,
		Renderer:         renderer,
		FileStore:        fileStore,
		EmailSender:      emailSender,
	}
}
