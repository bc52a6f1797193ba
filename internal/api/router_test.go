package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rxledger/statements/internal/api/cron"
	"github.com/rxledger/statements/internal/api/dto"
	v1 "github.com/rxledger/statements/internal/api/v1"
	"github.com/rxledger/statements/internal/cache"
	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/domain/patient"
	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/scheduler"
	"github.com/rxledger/statements/internal/sentry"
	"github.com/rxledger/statements/internal/service"
	"github.com/rxledger/statements/internal/testutil"
	"github.com/rxledger/statements/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	log := s.GetLogger()
	params := service.NewServiceParams(
		log,
		s.GetConfig(),
		s.GetDB(),
		stores.StatementRepo,
		stores.OrganizationRepo,
		stores.PatientRepo,
		stores.BillingStore,
		s.GetRenderer(),
		stores.FileStore,
		s.GetEmailSender(),
	)
	processor := service.NewStatementProcessor(params, service.NewStatementGenerator(params))
	sentrySvc := sentry.NewSentryService(s.GetConfig(), log)
	runner := scheduler.NewRunner(processor, cache.NewInMemoryCache(), noLock{}, s.GetConfig(), log, sentrySvc)

	s.router = NewRouter(Handlers{
		Health:        v1.NewHealthHandler(log),
		Statement:     v1.NewStatementHandler(service.NewStatementService(params, processor), service.NewStatementDispatchService(params), log),
		Processing:    v1.NewProcessingHandler(runner, log),
		CronStatement: cron.NewStatementHandler(runner, log),
	}, s.GetConfig(), log, sentrySvc)

	ctx := s.GetContext()
	stores.PatientRepo.AddPatient(ctx, &patient.Patient{ID: 10, FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"})
	stores.BillingStore.AddCharge(billing.ChargeRow{
		Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), PatientID: 10, PatientName: "Doe, Jane",
		Code: "RX300", Description: "Amoxicillin 250mg", Amount: decimal.RequireFromString("12.00"),
	}, decimal.Zero)
}

type noLock struct{}

func (noLock) Acquire(context.Context) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.HeaderUserID, "operator-1")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decodeError(w *httptest.ResponseRecorder) ierr.ErrorResponse {
	var resp ierr.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.False(resp.Success)
	return resp
}

func (s *RouterSuite) generate() *dto.GenerateStatementsResponse {
	w := s.do(http.MethodPost, "/v1/statements/generate", dto.GenerateStatementsRequest{
		GenerationType: types.TargetTypePatient,
		PatientIDs:     []int64{10},
		From:           "2024-03-01",
		To:             "2024-03-31",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp dto.GenerateStatementsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestGenerateAndFetch() {
	resp := s.generate()
	s.Equal(1, resp.Created)
	s.Require().NotNil(resp.Processing)
	s.Equal(1, resp.Processing.Completed)

	w := s.do(http.MethodGet, "/v1/statements?target_type=Patient&target_id=10", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Items []struct {
			ID              int64                 `json:"id"`
			StatementStatus types.StatementStatus `json:"statement_status"`
			CreatedBy       string                `json:"created_by"`
		} `json:"items"`
		Pagination types.PaginationResponse `json:"pagination"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list.Items, 1)
	s.Equal(1, list.Pagination.Total)
	s.False(list.Pagination.HasMore)
	s.Equal(types.StatementStatusCompleted, list.Items[0].StatementStatus)
	s.Equal("operator-1", list.Items[0].CreatedBy)

	w = s.do(http.MethodGet, "/v1/statements/1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var rec statement.Record
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rec))
	s.Equal(types.PatientTarget(10), rec.Target)
	s.Len(rec.StatusHistory, 2)
}

func (s *RouterSuite) TestGenerateValidation() {
	w := s.do(http.MethodPost, "/v1/statements/generate", map[string]any{
		"generation_type": "Ward",
		"from":            "2024-03-01",
		"to":              "2024-03-31",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decodeError(w)
	s.Contains(resp.Error.Display, "generation type must be")

	w = s.do(http.MethodPost, "/v1/statements/generate", "not an object")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestGetStatementErrors() {
	w := s.do(http.MethodGet, "/v1/statements/abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/v1/statements/99", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Statement 99 was not found", s.decodeError(w).Error.Display)
}

func (s *RouterSuite) TestSendWithoutStatement() {
	w := s.do(http.MethodPost, "/v1/statements/send/Patient/10", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(s.decodeError(w).Error.Display, "No invoice found")
}

func (s *RouterSuite) TestSendTwice() {
	s.generate()
	s.GetEmailSender().On("SendStatement", mock.Anything, mock.Anything).Return("msg_1", nil).Once()

	w := s.do(http.MethodPost, "/v1/statements/send/Patient/10", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var sent dto.SendStatementResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &sent))
	s.Equal(dto.DispatchStatusSent, sent.Status)

	w = s.do(http.MethodPost, "/v1/statements/send/Patient/10", nil)
	s.Equal(http.StatusConflict, w.Code)
	resp := s.decodeError(w)
	s.EqualValues(1, resp.Error.Details["statement_id"])
	s.GetEmailSender().AssertNumberOfCalls(s.T(), "SendStatement", 1)
}

func (s *RouterSuite) TestSendBadTarget() {
	w := s.do(http.MethodPost, "/v1/statements/send/Ward/10", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/statements/send/Patient/ten", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestBulkSend() {
	w := s.do(http.MethodPost, "/v1/statements/send", dto.SendStatementsRequest{
		Targets: []dto.StatementTargetRequest{{Type: types.TargetTypePatient, ID: 10}},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp dto.SendStatementsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(1, resp.Skipped)
}

func (s *RouterSuite) TestProcessingSurface() {
	w := s.do(http.MethodGet, "/v1/statements/processing/status", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status dto.ProcessingStatusResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &status))
	s.False(status.Running)
	s.Nil(status.LastRun)

	w = s.do(http.MethodPost, "/v1/cron/statements/process", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var run dto.ProcessingRunResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &run))
	s.Equal(scheduler.TriggerCron, run.Trigger)

	w = s.do(http.MethodGet, "/v1/statements/processing/runs/"+run.RunID, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/v1/statements/processing/trigger", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/statements/processing/status", nil)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &status))
	s.Require().NotNil(status.LastRun)
	s.Equal(scheduler.TriggerManual, status.LastRun.Trigger)

	w = s.do(http.MethodGet, "/v1/statements/processing/runs", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var runs []dto.ProcessingRunResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &runs))
	s.Len(runs, 2)

	w = s.do(http.MethodGet, "/v1/statements/processing/runs/run_missing", nil)
	s.Equal(http.StatusNotFound, w.Code)
}
