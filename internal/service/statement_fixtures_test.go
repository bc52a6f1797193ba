package service

import (
	"context"
	"time"

	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/domain/organization"
	"github.com/rxledger/statements/internal/domain/patient"
	"github.com/rxledger/statements/internal/domain/statement"
	"github.com/rxledger/statements/internal/testutil"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// statementTestBase seeds one organization with two wards and three patients:
//
//	org 7 "Maple Lodge" (MAPLE) -> ward 1 "A", ward 2 "B"
//	patients 10 Jane Doe, 11 Rick Roe (ward A), 12 Ann Poe (no email)
type statementTestBase struct {
	testutil.BaseServiceTestSuite
	march types.Period
	org   *organization.Organization
}

func (s *statementTestBase) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.march = types.NewPeriod(day(2024, 3, 1), day(2024, 3, 31))
	s.seed()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *statementTestBase) params() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		StatementRepo:    stores.StatementRepo,
		OrganizationRepo: stores.OrganizationRepo,
		PatientRepo:      stores.PatientRepo,
		BillingStore:     stores.BillingStore,
		Renderer:         s.GetRenderer(),
		FileStore:        stores.FileStore,
		EmailSender:      s.GetEmailSender(),
	}
}

func (s *statementTestBase) seed() {
	ctx := s.GetContext()
	stores := s.GetStores()

	s.org = stores.OrganizationRepo.AddOrganization(ctx, &organization.Organization{
		ID:         7,
		ExternalID: "MAPLE",
		Name:       "Maple Lodge",
		Email:      "billing@maple.example",
	})
	stores.OrganizationRepo.AddWard(ctx, &organization.Ward{ID: 1, OrganizationID: 7, ExternalID: "A", Name: "Ward A"})
	stores.OrganizationRepo.AddWard(ctx, &organization.Ward{ID: 2, OrganizationID: 7, ExternalID: "B", Name: "Ward B"})

	stores.PatientRepo.AddPatient(ctx, &patient.Patient{ID: 10, FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"})
	stores.PatientRepo.AddPatient(ctx, &patient.Patient{ID: 11, FirstName: "Rick", LastName: "Roe", Email: "rick@example.com"})
	stores.PatientRepo.AddPatient(ctx, &patient.Patient{ID: 12, FirstName: "Ann", LastName: "Poe"})
}

// seedWardACharges bills patients 10 and 11 under ward A in March
func (s *statementTestBase) seedWardACharges() {
	bs := s.GetStores().BillingStore
	bs.AddCharge(billing.ChargeRow{
		Date: day(2024, 3, 4), PatientID: 11, PatientName: "Roe, Rick", WardID: "A",
		Code: "RX100", Description: "Metformin 500mg", TaxCode: 0, Amount: decimal.RequireFromString("18.40"),
	}, decimal.Zero)
	bs.AddCharge(billing.ChargeRow{
		Date: day(2024, 3, 12), PatientID: 10, PatientName: "Doe, Jane", WardID: "A",
		Code: "OTC7", Description: "Compression socks", TaxCode: 4, Amount: decimal.RequireFromString("30.00"),
	}, decimal.RequireFromString("3.90"))
	bs.AddCharge(billing.ChargeRow{
		Date: day(2024, 3, 20), PatientID: 10, PatientName: "Doe, Jane", WardID: "A",
		Code: "RX200", Description: "Atorvastatin 20mg", TaxCode: 0, Amount: decimal.RequireFromString("22.15"),
	}, decimal.Zero)
}

// seedPatientCharge bills a patient outside any ward in March
func (s *statementTestBase) seedPatientCharge(patientID int64, name string) {
	s.GetStores().BillingStore.AddCharge(billing.ChargeRow{
		Date: day(2024, 3, 9), PatientID: patientID, PatientName: name,
		Code: "RX300", Description: "Amoxicillin 250mg", TaxCode: 0, Amount: decimal.RequireFromString("12.00"),
	}, decimal.Zero)
}

// recordOpts shape a record inserted straight into the store
type recordOpts struct {
	status    types.StatementStatus
	isSent    bool
	filePath  string
	createdAt time.Time
	wardIDs   []int64
}

func (s *statementTestBase) insertRecord(target types.Target, period types.Period, opts recordOpts) *statement.Record {
	ctx := s.GetContext()
	rec := statement.NewRecord(ctx, target, period, opts.isSent, opts.wardIDs)
	if !opts.createdAt.IsZero() {
		rec.CreatedAt = opts.createdAt
		rec.UpdatedAt = opts.createdAt
		rec.StatusHistory[0].Timestamp = opts.createdAt
	}
	switch opts.status {
	case types.StatementStatusCompleted:
		rec.MarkCompleted(ctx, opts.filePath)
	case types.StatementStatusFailed:
		rec.MarkFailed(ctx)
	}
	s.Require().NoError(s.GetStores().StatementRepo.Create(ctx, rec))
	return rec
}

// insertCompletedWithFile inserts a completed record whose file exists in storage
func (s *statementTestBase) insertCompletedWithFile(target types.Target, period types.Period, name string, isSent bool, createdAt time.Time) *statement.Record {
	path, err := s.GetStores().FileStore.Save(s.GetContext(), name, []byte("xlsx:"+name))
	s.Require().NoError(err)
	return s.insertRecord(target, period, recordOpts{
		status:    types.StatementStatusCompleted,
		isSent:    isSent,
		filePath:  path,
		createdAt: createdAt,
	})
}

func (s *statementTestBase) reload(id int64) *statement.Record {
	rec, err := s.GetStores().StatementRepo.GetRaw(s.GetContext(), id)
	s.Require().NoError(err)
	return rec
}

func (s *statementTestBase) active(target types.Target) []*statement.Record {
	recs, err := s.GetStores().StatementRepo.List(s.GetContext(), &types.StatementFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		TargetType:  lo.ToPtr(target.Type),
		TargetID:    lo.ToPtr(target.ID),
	})
	s.Require().NoError(err)
	return recs
}

// generatorFunc adapts a function to StatementGenerator
type generatorFunc func(ctx context.Context, target types.Target, period types.Period) (*GenerationResult, error)

func (f generatorFunc) Generate(ctx context.Context, target types.Target, period types.Period) (*GenerationResult, error) {
	return f(ctx, target, period)
}

func historyStatuses(rec *statement.Record) []types.StatementStatus {
	return lo.Map(rec.StatusHistory, func(e statement.StatusEntry, _ int) types.StatementStatus { return e.Status })
}

func billingRow(patientID int64, name, ward string, date time.Time) billing.ChargeRow {
	return billing.ChargeRow{
		Date: date, PatientID: patientID, PatientName: name, WardID: ward,
		Code: "RX900", Description: "Lisinopril 10mg", Amount: decimal.RequireFromString("9.75"),
	}
}
