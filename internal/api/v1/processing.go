package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/scheduler"
)

type ProcessingHandler struct {
	runner *scheduler.Runner
	logger *logger.Logger
}

func NewProcessingHandler(runner *scheduler.Runner, logger *logger.Logger) *ProcessingHandler {
	return &ProcessingHandler{
		runner: runner,
		logger: logger,
	}
}

// @Summary Trigger statement processing
// @Description Run a processing pass over pending statements now
// @Tags Processing
// @Produce json
// @Success 200 {object} dto.ProcessingRunResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /statements/processing/trigger [post]
func (h *ProcessingHandler) Trigger(c *gin.Context) {
	run, err := h.runner.Trigger(c.Request.Context(), scheduler.TriggerManual)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// @Summary Statement processing status
// @Description Whether a processing pass is running and the summary of the last run
// @Tags Processing
// @Produce json
// @Success 200 {object} dto.ProcessingStatusResponse
// @Router /statements/processing/status [get]
func (h *ProcessingHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status(c.Request.Context()))
}

// @Summary List processing runs
// @Description Recent processing runs, newest first
// @Tags Processing
// @Produce json
// @Success 200 {array} dto.ProcessingRunResponse
// @Router /statements/processing/runs [get]
func (h *ProcessingHandler) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.ListRuns(c.Request.Context()))
}

// @Summary Get a processing run
// @Tags Processing
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} dto.ProcessingRunResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /statements/processing/runs/{id} [get]
func (h *ProcessingHandler) GetRun(c *gin.Context) {
	run, err := h.runner.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, run)
}
