package service

import (
	"context"
	"strings"
	"testing"

	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/domain/patient"
	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type StatementServiceSuite struct {
	statementTestBase
	service   StatementService
	processor StatementProcessor
}

func TestStatementService(t *testing.T) {
	suite.Run(t, new(StatementServiceSuite))
}

func (s *StatementServiceSuite) SetupTest() {
	s.statementTestBase.SetupTest()
	s.setupService()
}

func (s *StatementServiceSuite) setupService() {
	params := s.params()
	s.processor = NewStatementProcessor(params, NewStatementGenerator(params))
	s.service = NewStatementService(params, s.processor)
}

func (s *StatementServiceSuite) orgRequest(ids ...string) *dto.GenerateStatementsRequest {
	return &dto.GenerateStatementsRequest{
		GenerationType:  types.TargetTypeOrganization,
		OrganizationIDs: ids,
		From:            "2024-03-01",
		To:              "2024-03-31",
	}
}

func (s *StatementServiceSuite) patientRequest(ids ...int64) *dto.GenerateStatementsRequest {
	return &dto.GenerateStatementsRequest{
		GenerationType: types.TargetTypePatient,
		PatientIDs:     ids,
		From:           "2024-03-01",
		To:             "2024-03-31",
	}
}

func (s *StatementServiceSuite) TestIntakeGeneratesOrganizationStatement() {
	s.seedWardACharges()

	resp, err := s.service.Intake(s.GetContext(), s.orgRequest("MAPLE"))
	s.Require().NoError(err)
	s.Equal(1, resp.Created)
	s.Equal(0, resp.Reused)
	s.Empty(resp.Skipped)
	s.Require().NotNil(resp.Processing)
	s.Equal(1, resp.Processing.Completed)

	records := s.active(types.OrganizationTarget(7))
	s.Require().Len(records, 1)
	rec := records[0]

	s.Equal(types.StatementStatusCompleted, rec.StatementStatus)
	s.Equal([]types.StatementStatus{types.StatementStatusPending, types.StatementStatusCompleted}, historyStatuses(rec))
	s.Equal(s.march, rec.Period())
	s.False(rec.IsSent)
	s.Require().True(rec.HasFile())
	s.True(strings.HasPrefix(*rec.FilePath, "uploads/statements/ORG_7_"))
	s.True(strings.HasSuffix(*rec.FilePath, ".xlsx"))

	exists, err := s.GetStores().FileStore.Exists(s.GetContext(), *rec.FilePath)
	s.Require().NoError(err)
	s.True(exists)

	s.Require().Len(rec.WardAllocations, 2)
	byWard := lo.KeyBy(rec.WardAllocations, func(a *statement.WardAllocation) int64 { return a.WardID })
	s.Equal("10,11", byWard[1].PatientIDs)
	s.Equal("", byWard[2].PatientIDs)
}

func (s *StatementServiceSuite) TestIntakeTwiceKeepsOneActiveRecord() {
	s.seedPatientCharge(10, "Doe, Jane")
	target := types.PatientTarget(10)

	first, err := s.service.Intake(s.GetContext(), s.patientRequest(10))
	s.Require().NoError(err)
	s.Equal(1, first.Created)
	firstFile := *s.active(target)[0].FilePath

	second, err := s.service.Intake(s.GetContext(), s.patientRequest(10))
	s.Require().NoError(err)
	s.Equal(0, second.Created)
	s.Equal(1, second.Reused)

	records := s.active(target)
	s.Require().Len(records, 1)
	rec := records[0]
	s.Equal(types.StatementStatusCompleted, rec.StatementStatus)
	s.Equal(s.march, rec.Period())
	s.Require().True(rec.HasFile())
	s.NotEqual(firstFile, *rec.FilePath)
	s.ElementsMatch([]string{firstFile, *rec.FilePath}, s.GetStores().FileStore.Paths())
	s.Equal([]types.StatementStatus{
		types.StatementStatusPending, types.StatementStatusCompleted,
		types.StatementStatusPending, types.StatementStatusCompleted,
	}, historyStatuses(rec))
}

func (s *StatementServiceSuite) TestIntakeCreatesOneAllocationPerWard() {
	// no charges, the record fails but keeps its empty allocations
	resp, err := s.service.Intake(s.GetContext(), s.orgRequest("MAPLE"))
	s.Require().NoError(err)
	s.Equal(1, resp.Created)
	s.Require().NotNil(resp.Processing)
	s.Equal(1, resp.Processing.Failed)

	rec := s.active(types.OrganizationTarget(7))[0]
	s.Equal(types.StatementStatusFailed, rec.StatementStatus)
	s.Nil(rec.FilePath)
	s.ElementsMatch([]int64{1, 2}, lo.Map(rec.WardAllocations, func(a *statement.WardAllocation, _ int) int64 { return a.WardID }))
	for _, a := range rec.WardAllocations {
		s.Empty(a.PatientIDs)
	}
}

func (s *StatementServiceSuite) TestIntakePatientWithoutChargesFails() {
	resp, err := s.service.Intake(s.GetContext(), s.patientRequest(12))
	s.Require().NoError(err)
	s.Equal(1, resp.Created)

	rec := s.active(types.PatientTarget(12))[0]
	s.Equal(types.StatementStatusFailed, rec.StatementStatus)
	s.Nil(rec.FilePath)
	s.Empty(rec.WardAllocations)
	s.Empty(s.GetStores().FileStore.Paths())
}

func (s *StatementServiceSuite) TestIntakeReusesNewestUnsentRecord() {
	target := types.OrganizationTarget(7)
	older := s.insertRecord(target, types.NewPeriod(day(2024, 2, 15), day(2024, 3, 10)), recordOpts{status: types.StatementStatusFailed})
	middle := s.insertCompletedWithFile(target, types.NewPeriod(day(2024, 3, 1), day(2024, 3, 15)), "ORG_7_a.xlsx", false, day(2024, 3, 16))
	newest := s.insertRecord(target, types.NewPeriod(day(2024, 3, 20), day(2024, 4, 5)), recordOpts{status: types.StatementStatusFailed})
	outside := s.insertRecord(target, types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31)), recordOpts{status: types.StatementStatusFailed})

	// keep the reused record Pending so the persisted intake state is visible
	s.processor = &lockedProcessor{}
	s.service = NewStatementService(s.params(), s.processor)

	resp, err := s.service.Intake(s.GetContext(), s.orgRequest("MAPLE"))
	s.Require().NoError(err)
	s.Equal(0, resp.Created)
	s.Equal(1, resp.Reused)
	s.Nil(resp.Processing)

	kept := s.reload(newest.ID)
	s.False(kept.IsDeleted())
	s.Equal(types.StatementStatusPending, kept.StatementStatus)
	s.Equal([]types.StatementStatus{
		types.StatementStatusPending,
		types.StatementStatusFailed,
		types.StatementStatusPending,
	}, historyStatuses(kept))
	s.Equal(s.march, kept.Period())
	s.Nil(kept.FilePath)
	s.Len(kept.WardAllocations, 2)

	s.True(s.reload(older.ID).IsDeleted())
	s.True(s.reload(middle.ID).IsDeleted())
	s.False(s.reload(outside.ID).IsDeleted())
}

func (s *StatementServiceSuite) TestIntakeReusedRecordIsProcessed() {
	target := types.PatientTarget(10)
	existing := s.insertRecord(target, s.march, recordOpts{status: types.StatementStatusFailed})
	s.seedPatientCharge(10, "Doe, Jane")

	resp, err := s.service.Intake(s.GetContext(), s.patientRequest(10))
	s.Require().NoError(err)
	s.Equal(1, resp.Reused)

	rec := s.reload(existing.ID)
	s.Equal(types.StatementStatusCompleted, rec.StatementStatus)
	s.Equal([]types.StatementStatus{
		types.StatementStatusPending,
		types.StatementStatusFailed,
		types.StatementStatusPending,
		types.StatementStatusCompleted,
	}, historyStatuses(rec))
	s.True(strings.HasPrefix(*rec.FilePath, "uploads/statements/PAT_10_"))
}

func (s *StatementServiceSuite) TestIntakeSkipsTargetWithSentStatement() {
	target := types.OrganizationTarget(7)
	sent := s.insertCompletedWithFile(target, types.NewPeriod(day(2024, 3, 1), day(2024, 3, 15)), "ORG_7_sent.xlsx", true, day(2024, 3, 16))
	unsent := s.insertRecord(target, types.NewPeriod(day(2024, 3, 16), day(2024, 3, 31)), recordOpts{status: types.StatementStatusFailed})

	resp, err := s.service.Intake(s.GetContext(), s.orgRequest("MAPLE"))
	s.Require().NoError(err)
	s.Equal(0, resp.Created)
	s.Equal(0, resp.Reused)
	s.Equal([]string{"Maple Lodge"}, resp.Skipped)

	s.Equal(sent, s.reload(sent.ID))
	s.Equal(unsent, s.reload(unsent.ID))
	s.Len(s.active(target), 2)
}

func (s *StatementServiceSuite) TestIntakeSkipsPatientByDisplayName() {
	s.insertCompletedWithFile(types.PatientTarget(11), s.march, "PAT_11.xlsx", true, day(2024, 4, 1))

	resp, err := s.service.Intake(s.GetContext(), s.patientRequest(11))
	s.Require().NoError(err)
	s.Equal([]string{"Roe, Rick"}, resp.Skipped)
}

func (s *StatementServiceSuite) TestIntakeIgnoresUnknownTargets() {
	ctx := s.GetContext()
	s.GetStores().PatientRepo.AddPatient(ctx, &patient.Patient{
		ID: 13, FirstName: "Gone", LastName: "Away",
		BaseModel: types.BaseModel{Status: types.StatusDeleted},
	})

	resp, err := s.service.Intake(ctx, s.patientRequest(99, 13))
	s.Require().NoError(err)
	s.Equal(0, resp.Created)
	s.Empty(resp.Skipped)

	count, err := s.GetStores().StatementRepo.Count(ctx, &types.StatementFilter{QueryFilter: types.NewNoLimitQueryFilter()})
	s.Require().NoError(err)
	s.Zero(count)

	resp, err = s.service.Intake(ctx, s.orgRequest("NOPE"))
	s.Require().NoError(err)
	s.Equal(0, resp.Created)
}

func (s *StatementServiceSuite) TestIntakeWithoutIDsCoversUncoveredTargets() {
	ctx := s.GetContext()
	// patient 10 is covered by a sent record, patient 11 by an unsent one
	s.insertCompletedWithFile(types.PatientTarget(10), types.NewPeriod(day(2024, 3, 10), day(2024, 3, 12)), "PAT_10.xlsx", true, day(2024, 3, 13))
	covered := s.insertRecord(types.PatientTarget(11), types.NewPeriod(day(2024, 2, 1), day(2024, 3, 1)), recordOpts{status: types.StatementStatusFailed})

	resp, err := s.service.Intake(ctx, s.patientRequest())
	s.Require().NoError(err)
	s.Equal(1, resp.Created)
	s.Equal(0, resp.Reused)
	s.Empty(resp.Skipped)

	s.Len(s.active(types.PatientTarget(12)), 1)
	s.Len(s.active(types.PatientTarget(10)), 1)
	s.Equal(covered, s.reload(covered.ID))
}

func (s *StatementServiceSuite) TestIntakeDeduplicatesRequestedIDs() {
	resp, err := s.service.Intake(s.GetContext(), s.patientRequest(12, 12))
	s.Require().NoError(err)
	s.Equal(1, resp.Created)
	s.Len(s.active(types.PatientTarget(12)), 1)
}

func (s *StatementServiceSuite) TestIntakeRunsOneTransactionPerTarget() {
	s.processor = &lockedProcessor{}
	s.service = NewStatementService(s.params(), s.processor)

	_, err := s.service.Intake(s.GetContext(), s.patientRequest(10, 11, 12))
	s.Require().NoError(err)
	s.Equal(int64(3), s.GetDB().TxCount())
}

func (s *StatementServiceSuite) TestIntakeWhileProcessingIsRunning() {
	s.service = NewStatementService(s.params(), &lockedProcessor{})

	resp, err := s.service.Intake(s.GetContext(), s.patientRequest(10))
	s.Require().NoError(err)
	s.Equal(1, resp.Created)
	s.Nil(resp.Processing)

	rec := s.active(types.PatientTarget(10))[0]
	s.Equal(types.StatementStatusPending, rec.StatementStatus)
}

func (s *StatementServiceSuite) TestIntakeValidation() {
	tests := []struct {
		name string
		req  *dto.GenerateStatementsRequest
	}{
		{
			name: "unknown generation type",
			req:  &dto.GenerateStatementsRequest{GenerationType: "Ward", From: "2024-03-01", To: "2024-03-31"},
		},
		{
			name: "inverted period",
			req:  &dto.GenerateStatementsRequest{GenerationType: types.TargetTypePatient, From: "2024-03-31", To: "2024-03-01"},
		},
		{
			name: "bad date",
			req:  &dto.GenerateStatementsRequest{GenerationType: types.TargetTypePatient, From: "03/01/2024", To: "2024-03-31"},
		},
		{
			name: "patient ids on organization request",
			req:  &dto.GenerateStatementsRequest{GenerationType: types.TargetTypeOrganization, PatientIDs: []int64{10}, From: "2024-03-01", To: "2024-03-31"},
		},
		{
			name: "missing dates",
			req:  &dto.GenerateStatementsRequest{GenerationType: types.TargetTypePatient},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.Intake(s.GetContext(), tt.req)
			s.Error(err)
			s.Nil(resp)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Zero(s.GetDB().TxCount())
}

func (s *StatementServiceSuite) TestGetStatement() {
	rec := s.insertRecord(types.PatientTarget(10), s.march, recordOpts{})

	resp, err := s.service.GetStatement(s.GetContext(), rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.ID, resp.ID)
	s.Equal(types.StatementStatusPending, resp.StatementStatus)

	s.Require().NoError(s.GetStores().StatementRepo.SoftDelete(s.GetContext(), []int64{rec.ID}))
	_, err = s.service.GetStatement(s.GetContext(), rec.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *StatementServiceSuite) TestListStatements() {
	s.insertRecord(types.PatientTarget(10), s.march, recordOpts{status: types.StatementStatusFailed, createdAt: day(2024, 4, 1)})
	s.insertCompletedWithFile(types.PatientTarget(11), s.march, "PAT_11.xlsx", false, day(2024, 4, 2))
	s.insertCompletedWithFile(types.OrganizationTarget(7), s.march, "ORG_7.xlsx", true, day(2024, 4, 3))

	tests := []struct {
		name     string
		filter   *types.StatementFilter
		expected int
	}{
		{
			name:     "default filter",
			filter:   nil,
			expected: 3,
		},
		{
			name:     "by target type",
			filter:   &types.StatementFilter{TargetType: lo.ToPtr(types.TargetTypePatient)},
			expected: 2,
		},
		{
			name:     "by status",
			filter:   &types.StatementFilter{StatementStatus: []types.StatementStatus{types.StatementStatusCompleted}},
			expected: 2,
		},
		{
			name:     "by sent flag",
			filter:   &types.StatementFilter{IsSent: lo.ToPtr(true)},
			expected: 1,
		},
		{
			name:     "outside period",
			filter:   &types.StatementFilter{PeriodFrom: lo.ToPtr("2024-05-01"), PeriodTo: lo.ToPtr("2024-05-31")},
			expected: 0,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.ListStatements(s.GetContext(), tt.filter)
			s.Require().NoError(err)
			s.Len(resp.Items, tt.expected)
			s.Equal(tt.expected, resp.Pagination.Total)
		})
	}

	resp, err := s.service.ListStatements(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(types.TargetTypeOrganization, resp.Items[0].Target.Type)

	_, err = s.service.ListStatements(s.GetContext(), &types.StatementFilter{TargetID: lo.ToPtr(int64(7))})
	s.True(ierr.IsValidation(err))
}

// lockedProcessor behaves like a processor whose pass is already running
type lockedProcessor struct{}

func (p *lockedProcessor) ProcessPending(_ context.Context) (*dto.ProcessPendingResponse, error) {
	return nil, ierr.NewError("statement processing already running").Mark(ierr.ErrInvalidOperation)
}

func (p *lockedProcessor) IsRunning() bool {
	return true
}
