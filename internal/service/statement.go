package service

import (
	"context"

	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/domain/organization"
	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

type StatementService interface {
	// Intake creates or reuses one Pending statement per target for the
	// requested period and then runs a processing pass
	Intake(ctx context.Context, req *dto.GenerateStatementsRequest) (*dto.GenerateStatementsResponse, error)
	GetStatement(ctx context.Context, id int64) (*dto.StatementResponse, error)
	ListStatements(ctx context.Context, filter *types.StatementFilter) (*dto.ListStatementsResponse, error)
}

type statementService struct {
	ServiceParams
	processor StatementProcessor
}

func NewStatementService(params ServiceParams, processor StatementProcessor) StatementService {
	return &statementService{
		ServiceParams: params,
		processor:     processor,
	}
}

// intakeTarget is a resolved target with the name reported when it is skipped
type intakeTarget struct {
	target types.Target
	name   string
}

type intakeOutcome int

const (
	intakeCreated intakeOutcome = iota
	intakeReused
	intakeSkipped
)

func (s *statementService) Intake(ctx context.Context, req *dto.GenerateStatementsRequest) (*dto.GenerateStatementsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	period, err := req.GetPeriod()
	if err != nil {
		return nil, err
	}

	targets, err := s.resolveTargets(ctx, req, period)
	if err != nil {
		return nil, err
	}

	resp := &dto.GenerateStatementsResponse{Skipped: []string{}}
	for _, t := range targets {
		var outcome intakeOutcome
		err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			outcome, err = s.intakeOne(txCtx, t.target, period, req.IsSent)
			return err
		})
		if err != nil {
			s.Logger.Errorw("statement intake failed",
				"target", t.target.String(),
				"period", period.String(),
				"error", err,
			)
			return nil, err
		}

		switch outcome {
		case intakeCreated:
			resp.Created++
		case intakeReused:
			resp.Reused++
		case intakeSkipped:
			resp.Skipped = append(resp.Skipped, t.name)
		}
	}

	s.Logger.Infow("statement intake finished",
		"generation_type", req.GenerationType,
		"period", period.String(),
		"created", resp.Created,
		"reused", resp.Reused,
		"skipped", len(resp.Skipped),
	)

	// generation is best effort, records left Pending are picked up by the next pass
	processing, err := s.processor.ProcessPending(ctx)
	if err != nil {
		s.Logger.Warnw("statement processing after intake did not run",
			"error", err,
		)
	} else {
		resp.Processing = processing
	}

	return resp, nil
}

// intakeOne applies the dedup rules to one target inside a transaction
func (s *statementService) intakeOne(ctx context.Context, target types.Target, period types.Period, isSent bool) (intakeOutcome, error) {
	existing, err := s.StatementRepo.ListOverlapping(ctx, target, period)
	if err != nil {
		return 0, err
	}

	if lo.SomeBy(existing, func(r *statement.Record) bool { return r.IsSent }) {
		s.Logger.Infow("statement already sent for period, skipping",
			"target", target.String(),
			"period", period.String(),
		)
		return intakeSkipped, nil
	}

	var wardIDs []int64
	if target.IsOrganization() {
		wards, err := s.OrganizationRepo.ListWards(ctx, target.ID)
		if err != nil {
			return 0, err
		}
		wardIDs = lo.Map(wards, func(w *organization.Ward, _ int) int64 { return w.ID })
	}

	if len(existing) == 0 {
		rec := statement.NewRecord(ctx, target, period, isSent, wardIDs)
		if err := s.StatementRepo.Create(ctx, rec); err != nil {
			return 0, err
		}
		return intakeCreated, nil
	}

	// existing is ordered highest id first, the newest record is kept
	keeper, duplicates := existing[0], existing[1:]
	if len(duplicates) > 0 {
		ids := lo.Map(duplicates, func(r *statement.Record, _ int) int64 { return r.ID })
		if err := s.StatementRepo.SoftDelete(ctx, ids); err != nil {
			return 0, err
		}
		s.Logger.Infow("removed duplicate statements",
			"target", target.String(),
			"kept", keeper.ID,
			"removed", ids,
		)
	}

	keeper.ResetForReuse(ctx, period, isSent, wardIDs)
	if err := s.StatementRepo.Update(ctx, keeper); err != nil {
		return 0, err
	}
	return intakeReused, nil
}

// resolveTargets maps the request onto active targets. Unknown or deleted ids
// are dropped. Without ids the candidates are all active targets that have
// no statement overlapping the period.
func (s *statementService) resolveTargets(ctx context.Context, req *dto.GenerateStatementsRequest, period types.Period) ([]intakeTarget, error) {
	if req.HasExplicitIDs() {
		return s.resolveExplicitTargets(ctx, req)
	}

	covered, err := s.StatementRepo.ListTargetIDsWithOverlap(ctx, req.GenerationType, period)
	if err != nil {
		return nil, err
	}
	coveredSet := lo.SliceToMap(covered, func(id int64) (int64, struct{}) { return id, struct{}{} })

	var targets []intakeTarget
	switch req.GenerationType {
	case types.TargetTypeOrganization:
		orgs, err := s.OrganizationRepo.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		for _, org := range orgs {
			if _, ok := coveredSet[org.ID]; ok {
				continue
			}
			targets = append(targets, intakeTarget{target: types.OrganizationTarget(org.ID), name: org.Name})
		}
	case types.TargetTypePatient:
		patients, err := s.PatientRepo.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range patients {
			if _, ok := coveredSet[p.ID]; ok {
				continue
			}
			targets = append(targets, intakeTarget{target: types.PatientTarget(p.ID), name: p.DisplayName()})
		}
	}
	return targets, nil
}

func (s *statementService) resolveExplicitTargets(ctx context.Context, req *dto.GenerateStatementsRequest) ([]intakeTarget, error) {
	var targets []intakeTarget

	switch req.GenerationType {
	case types.TargetTypeOrganization:
		for _, externalID := range lo.Uniq(req.OrganizationIDs) {
			org, err := s.OrganizationRepo.GetByExternalID(ctx, externalID)
			if err != nil {
				if ierr.IsNotFound(err) {
					s.Logger.Infow("organization not found, skipping", "external_id", externalID)
					continue
				}
				return nil, err
			}
			targets = append(targets, intakeTarget{target: types.OrganizationTarget(org.ID), name: org.Name})
		}
	case types.TargetTypePatient:
		for _, id := range lo.Uniq(req.PatientIDs) {
			p, err := s.PatientRepo.Get(ctx, id)
			if err != nil {
				if ierr.IsNotFound(err) {
					s.Logger.Infow("patient not found, skipping", "patient_id", id)
					continue
				}
				return nil, err
			}
			targets = append(targets, intakeTarget{target: types.PatientTarget(p.ID), name: p.DisplayName()})
		}
	}
	return targets, nil
}

func (s *statementService) GetStatement(ctx context.Context, id int64) (*dto.StatementResponse, error) {
	rec, err := s.StatementRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.StatementResponse{Record: rec}, nil
}

func (s *statementService) ListStatements(ctx context.Context, filter *types.StatementFilter) (*dto.ListStatementsResponse, error) {
	if filter == nil {
		filter = types.NewStatementFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	records, err := s.StatementRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.StatementRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(records, func(r *statement.Record, _ int) *dto.StatementResponse {
		return &dto.StatementResponse{Record: r}
	})
	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
