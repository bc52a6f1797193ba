package testutil

import (
	"context"
	"time"

	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/types"
	"github.com/rxledger/statements/internal/validator"
	"github.com/rxledger/statements/internal/workbook"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the in-memory repositories for testing
type Stores struct {
	StatementRepo    *InMemoryStatementStore
	OrganizationRepo *InMemoryOrganizationStore
	PatientRepo      *InMemoryPatientStore
	BillingStore     *InMemoryBillingStore
	FileStore        *InMemoryFileStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	stores      Stores
	db          *MockPostgresClient
	logger      *logger.Logger
	config      *config.Configuration
	now         time.Time
	renderer    workbook.Renderer
	emailSender *MockEmailSender
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Storage.Subpath = "uploads/statements"
	cfg.Statement.From = config.BusinessInfo{
		Name:  "Main Street Pharmacy",
		City:  "Hamilton",
		Phone: "555-0100",
	}
	s.config = cfg
	s.logger = logger.NewNopLogger()
	s.renderer = workbook.NewRenderer(s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		StatementRepo:    NewInMemoryStatementStore(),
		OrganizationRepo: NewInMemoryOrganizationStore(),
		PatientRepo:      NewInMemoryPatientStore(),
		BillingStore:     NewInMemoryBillingStore(),
		FileStore:        NewInMemoryFileStore(s.config.Storage.Subpath),
	}
	s.db = NewMockPostgresClient(s.logger)
	s.emailSender = NewMockEmailSender()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.StatementRepo.Clear()
	s.stores.OrganizationRepo.Clear()
	s.stores.PatientRepo.Clear()
	s.stores.BillingStore.Clear()
	s.stores.FileStore.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetRenderer returns the workbook renderer
func (s *BaseServiceTestSuite) GetRenderer() workbook.Renderer {
	return s.renderer
}

// GetEmailSender returns the mocked email sender
func (s *BaseServiceTestSuite) GetEmailSender() *MockEmailSender {
	return s.emailSender
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}
