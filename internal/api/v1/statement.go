package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rxledger/statements/internal/api/dto"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/service"
	"github.com/rxledger/statements/internal/types"
)

type StatementHandler struct {
	statementService service.StatementService
	dispatchService  service.StatementDispatchService
	logger           *logger.Logger
}

func NewStatementHandler(
	statementService service.StatementService,
	dispatchService service.StatementDispatchService,
	logger *logger.Logger,
) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
		dispatchService:  dispatchService,
		logger:           logger,
	}
}

// @Summary Generate statements
// @Description Queue statements for the given targets and period, reusing unsent statements that overlap it, then run a processing pass
// @Tags Statements
// @Accept json
// @Produce json
// @Param request body dto.GenerateStatementsRequest true "Generation request"
// @Success 200 {object} dto.GenerateStatementsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /statements/generate [post]
func (h *StatementHandler) GenerateStatements(c *gin.Context) {
	var req dto.GenerateStatementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.statementService.Intake(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a statement
// @Description Get a statement with its status history and ward allocations
// @Tags Statements
// @Produce json
// @Param id path int true "Statement ID"
// @Success 200 {object} dto.StatementResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /statements/{id} [get]
func (h *StatementHandler) GetStatement(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(ierr.NewError("statement ID is required").
			WithHint("Statement id must be a positive number").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.statementService.GetStatement(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List statements
// @Description List statements, newest first
// @Tags Statements
// @Produce json
// @Param filter query types.StatementFilter false "Filter"
// @Success 200 {object} dto.ListStatementsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /statements [get]
func (h *StatementHandler) ListStatements(c *gin.Context) {
	filter := types.NewStatementFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.statementService.ListStatements(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Send the latest statement of a target
// @Description Email the most recent statement file of an organization or patient
// @Tags Statements
// @Produce json
// @Param type path string true "Target type" Enums(Organization, Patient)
// @Param id path int true "Target ID"
// @Success 200 {object} dto.SendStatementResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /statements/send/{type}/{id} [post]
func (h *StatementHandler) SendStatement(c *gin.Context) {
	target, err := dto.ParseStatementTarget(c.Param("type"), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.dispatchService.SendLatest(c.Request.Context(), target.ToTarget())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Send the latest statements of many targets
// @Description Email the most recent statement of each target, reporting the outcome per target
// @Tags Statements
// @Accept json
// @Produce json
// @Param request body dto.SendStatementsRequest true "Targets"
// @Success 200 {object} dto.SendStatementsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /statements/send [post]
func (h *StatementHandler) SendStatements(c *gin.Context) {
	var req dto.SendStatementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.dispatchService.SendLatestBulk(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
