package internal

import (
	"fmt"

	"github.com/rxledger/statements/internal/billingsource"
	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/email"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/repository"
	"github.com/rxledger/statements/internal/service"
	"github.com/rxledger/statements/internal/storage"
	"github.com/rxledger/statements/internal/workbook"
)

// scriptEnv is the service graph the scripts run against
type scriptEnv struct {
	cfg     *config.Configuration
	log     *logger.Logger
	db      *postgres.DB
	billing *billingsource.Store
	params  service.ServiceParams
}

func newScriptEnv(withBilling bool) (*scriptEnv, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	env := &scriptEnv{cfg: cfg, log: log, db: db}
	if !withBilling {
		return env, nil
	}

	env.billing, err = billingsource.NewStore(cfg, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to billing source: %w", err)
	}

	fileStore, err := storage.NewFileStore(cfg, log)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.params = service.NewServiceParams(
		log,
		cfg,
		db,
		repository.NewStatementRepository(db, log),
		repository.NewOrganizationRepository(db, log),
		repository.NewPatientRepository(db, log),
		repository.NewBillingStore(env.billing, log),
		workbook.NewRenderer(log),
		fileStore,
		email.NewEmail(email.NewEmailClient(cfg), cfg, log),
	)
	return env, nil
}

func (e *scriptEnv) Close() {
	if e.billing != nil {
		_ = e.billing.Close()
	}
	e.db.Close()
}
