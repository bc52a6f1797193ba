package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/domain/organization"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/rxledger/statements/internal/workbook"
	"github.com/samber/lo"
)

// fileTimestampLayout is the timestamp embedded in statement file names,
// down to the nanosecond; the fraction's dot is dropped
const fileTimestampLayout = "20060102150405.000000000"

// fileSaveAttempts bounds how often a name collision is retried with a later timestamp
const fileSaveAttempts = 3

// GenerationResult is the outcome of rendering one statement. FilePath is
// empty when the target had no billable charges in the period.
type GenerationResult struct {
	FilePath string
	Charges  []*billing.ChargeRow
}

func (r *GenerationResult) HasFile() bool {
	return r != nil && r.FilePath != ""
}

// StatementGenerator renders a statement file for a target and period
type StatementGenerator interface {
	Generate(ctx context.Context, target types.Target, period types.Period) (*GenerationResult, error)
}

type statementGenerator struct {
	ServiceParams
}

func NewStatementGenerator(params ServiceParams) StatementGenerator {
	return &statementGenerator{
		ServiceParams: params,
	}
}

func (s *statementGenerator) Generate(ctx context.Context, target types.Target, period types.Period) (*GenerationResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	query := &billing.Query{Period: period}
	recipient := workbook.RecipientInfo{}

	switch target.Type {
	case types.TargetTypeOrganization:
		org, err := s.OrganizationRepo.Get(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		wards, err := s.OrganizationRepo.ListWards(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		query.WardIDs = lo.Map(wards, func(w *organization.Ward, _ int) string { return w.ExternalID })
		recipient.Name = org.Name
		recipient.Email = org.Email
		recipient.Wards = lo.Map(wards, func(w *organization.Ward, _ int) string { return w.Name })
	case types.TargetTypePatient:
		p, err := s.PatientRepo.Get(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		query.PatientID = lo.ToPtr(p.ID)
		recipient.Name = p.DisplayName()
		recipient.Email = p.Email
	}

	charges, err := s.BillingStore.ListCharges(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		s.Logger.Infow("no billable charges for statement",
			"target", target.String(),
			"period", period.String(),
		)
		return &GenerationResult{Charges: charges}, nil
	}

	summaries, err := s.BillingStore.ListPatientSummaries(ctx, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	content, err := s.Renderer.RenderStatement(ctx, &workbook.StatementData{
		Target:      target,
		Period:      period,
		GeneratedAt: now,
		From:        s.Config.Statement.From,
		Recipient:   recipient,
		Charges:     charges,
		Summaries:   summaries,
		Totals:      billing.Summarize(summaries),
	})
	if err != nil {
		return nil, err
	}

	path, err := s.saveFile(ctx, target, now, content)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("generated statement file",
		"target", target.String(),
		"period", period.String(),
		"charges", len(charges),
		"path", path,
	)
	return &GenerationResult{FilePath: path, Charges: charges}, nil
}

// saveFile stores content under a fresh name. Stores never overwrite, so a
// name taken by another generation is retried a nanosecond later.
func (s *statementGenerator) saveFile(ctx context.Context, target types.Target, at time.Time, content []byte) (string, error) {
	var err error
	for attempt := 0; attempt < fileSaveAttempts; attempt++ {
		name := StatementFileName(target, at.Add(time.Duration(attempt)))
		var path string
		path, err = s.FileStore.Save(ctx, name, content)
		if err == nil {
			return path, nil
		}
		if !ierr.IsAlreadyExists(err) {
			return "", err
		}
		s.Logger.Warnw("statement file name taken, retrying",
			"target", target.String(),
			"name", name,
		)
	}
	return "", err
}

// StatementFileName is {ORG|PAT}_{id}_{timestamp}.xlsx
func StatementFileName(target types.Target, at time.Time) string {
	stamp := strings.Replace(at.UTC().Format(fileTimestampLayout), ".", "", 1)
	return fmt.Sprintf("%s_%d_%s.xlsx", target.Type.FilePrefix(), target.ID, stamp)
}
