package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/scheduler"
)

// StatementHandler handles statement related cron jobs
type StatementHandler struct {
	runner *scheduler.Runner
	logger *logger.Logger
}

func NewStatementHandler(runner *scheduler.Runner, logger *logger.Logger) *StatementHandler {
	return &StatementHandler{
		runner: runner,
		logger: logger,
	}
}

// ProcessPendingStatements runs a processing pass for an external scheduler
func (h *StatementHandler) ProcessPendingStatements(c *gin.Context) {
	h.logger.Infow("starting process pending statements cron job", "time", time.Now().UTC().Format(time.RFC3339))

	run, err := h.runner.Trigger(c.Request.Context(), scheduler.TriggerCron)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, run)
}
