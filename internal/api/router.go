package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rxledger/statements/internal/api/cron"
	v1 "github.com/rxledger/statements/internal/api/v1"
	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/rest/middleware"
	"github.com/rxledger/statements/internal/sentry"
	"github.com/rxledger/statements/internal/types"
)

type Handlers struct {
	Health     *v1.HealthHandler
	Statement  *v1.StatementHandler
	Processing *v1.ProcessingHandler

	CronStatement *cron.StatementHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CORSMiddleware,
		middleware.RequestIDMiddleware,
		middleware.ErrorHandler(logger, sentrySvc),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	v1Group.GET("/health", handlers.Health.Health)

	statements := v1Group.Group("/statements")
	{
		statements.GET("", handlers.Statement.ListStatements)
		statements.POST("/generate", handlers.Statement.GenerateStatements)
		statements.POST("/send", handlers.Statement.SendStatements)
		statements.POST("/send/:type/:id", handlers.Statement.SendStatement)

		processing := statements.Group("/processing")
		{
			processing.POST("/trigger", handlers.Processing.Trigger)
			processing.GET("/status", handlers.Processing.Status)
			processing.GET("/runs", handlers.Processing.ListRuns)
			processing.GET("/runs/:id", handlers.Processing.GetRun)
		}

		statements.GET("/:id", handlers.Statement.GetStatement)
	}

	cronGroup := v1Group.Group("/cron")
	{
		cronGroup.POST("/statements/process", handlers.CronStatement.ProcessPendingStatements)
	}

	return router
}
