package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rxledger/statements/internal/api"
	"github.com/rxledger/statements/internal/api/cron"
	v1 "github.com/rxledger/statements/internal/api/v1"
	"github.com/rxledger/statements/internal/billingsource"
	"github.com/rxledger/statements/internal/cache"
	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/email"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/repository"
	"github.com/rxledger/statements/internal/scheduler"
	"github.com/rxledger/statements/internal/sentry"
	"github.com/rxledger/statements/internal/service"
	"github.com/rxledger/statements/internal/storage"
	"github.com/rxledger/statements/internal/types"
	"github.com/rxledger/statements/internal/validator"
	"github.com/rxledger/statements/internal/workbook"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			provideDBClient,

			// Billing source
			billingsource.NewStore,

			// Repositories
			repository.NewStatementRepository,
			repository.NewOrganizationRepository,
			repository.NewPatientRepository,
			repository.NewBillingStore,

			// Rendering, storage and email
			workbook.NewRenderer,
			storage.NewFileStore,
			email.NewEmailClient,
			email.NewEmail,
		),
	)

	// Monitoring
	opts = append(opts, sentry.Module())

	// Services
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewStatementGenerator,
			service.NewStatementProcessor,
			provideStatementService,
			service.NewStatementDispatchService,

			// Scheduler
			scheduler.NewRunLock,
			scheduler.NewRunner,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(
			closeStores,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideDBClient(db *postgres.DB) postgres.IClient {
	return db
}

// provideStatementService runs the pass that follows an intake under the
// same run lock as scheduled passes
func provideStatementService(
	params service.ServiceParams,
	processor service.StatementProcessor,
	lock scheduler.RunLock,
) service.StatementService {
	return service.NewStatementService(params, scheduler.NewLockedProcessor(processor, lock))
}

func provideHandlers(
	logger *logger.Logger,
	statementService service.StatementService,
	dispatchService service.StatementDispatchService,
	runner *scheduler.Runner,
) api.Handlers {
	return api.Handlers{
		Health:        v1.NewHealthHandler(logger),
		Statement:     v1.NewStatementHandler(statementService, dispatchService, logger),
		Processing:    v1.NewProcessingHandler(runner, logger),
		CronStatement: cron.NewStatementHandler(runner, logger),
	}
}

func closeStores(lc fx.Lifecycle, db *postgres.DB, billing *billingsource.Store, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing database connections...")
			db.Close()
			return billing.Close()
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	runner *scheduler.Runner,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startScheduler(lc, runner, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeWorker:
		startScheduler(lc, runner, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startScheduler(lc fx.Lifecycle, runner *scheduler.Runner, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting statement scheduler...")
			return runner.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping statement scheduler...")
			return runner.Stop(ctx)
		},
	})
}
