package service

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/panics"
)

// StatementProcessor generates files for Pending statements
type StatementProcessor interface {
	// ProcessPending runs one pass over every Pending statement, oldest first.
	// Only one pass runs at a time; a concurrent call fails with an invalid
	// operation error.
	ProcessPending(ctx context.Context) (*dto.ProcessPendingResponse, error)

	// IsRunning reports whether a pass is in progress
	IsRunning() bool
}

type statementProcessor struct {
	ServiceParams
	generator StatementGenerator
	running   atomic.Bool
}

func NewStatementProcessor(params ServiceParams, generator StatementGenerator) StatementProcessor {
	return &statementProcessor{
		ServiceParams: params,
		generator:     generator,
	}
}

func (s *statementProcessor) IsRunning() bool {
	return s.running.Load()
}

func (s *statementProcessor) ProcessPending(ctx context.Context) (*dto.ProcessPendingResponse, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ierr.NewError("statement processing already running").
			WithHint("A processing pass is already in progress, try again later").
			Mark(ierr.ErrInvalidOperation)
	}
	defer s.running.Store(false)

	records, err := s.StatementRepo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProcessPendingResponse{}
	processed := make([]processedRecord, 0, len(records))

	for _, rec := range records {
		if ctx.Err() != nil {
			resp.Interrupted = true
			s.Logger.Warnw("statement processing interrupted",
				"processed", len(processed),
				"remaining", len(records)-len(processed),
				"error", ctx.Err(),
			)
			break
		}

		readAt := rec.UpdatedAt
		s.processRecord(ctx, rec)
		processed = append(processed, processedRecord{rec: rec, readAt: readAt})

		resp.Processed++
		if rec.StatementStatus == types.StatementStatusCompleted {
			resp.Completed++
		} else {
			resp.Failed++
		}
	}

	if len(processed) == 0 {
		return resp, nil
	}

	// a cancelled pass still records the work it finished
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}

	var superseded []*statement.Record
	err = s.DB.WithTx(persistCtx, func(txCtx context.Context) error {
		superseded = superseded[:0]
		for _, p := range processed {
			written, err := s.StatementRepo.UpdateProcessed(txCtx, p.rec, p.readAt)
			if err != nil {
				return err
			}
			if !written {
				superseded = append(superseded, p.rec)
			}
		}
		return nil
	})
	if err != nil {
		s.Logger.Errorw("failed to persist processed statements",
			"count", len(processed),
			"error", err,
		)
		return nil, err
	}

	for _, rec := range superseded {
		// deleted, reused or reprocessed since it was listed; its outcome is dropped
		s.Logger.Warnw("statement changed during processing, result discarded",
			"statement_id", rec.ID,
			"target", rec.Target.String(),
			"discarded_status", rec.StatementStatus,
		)
		if rec.StatementStatus == types.StatementStatusCompleted {
			resp.Completed--
		} else {
			resp.Failed--
		}
		resp.Superseded++
	}

	s.Logger.Infow("statement processing finished",
		"processed", resp.Processed,
		"completed", resp.Completed,
		"failed", resp.Failed,
		"superseded", resp.Superseded,
		"interrupted", resp.Interrupted,
	)
	return resp, nil
}

// processedRecord is a record handled in this pass with the updated_at it
// was listed with
type processedRecord struct {
	rec    *statement.Record
	readAt time.Time
}

// processRecord moves one record to Completed or Failed in memory. Errors and
// panics fail this record only.
func (s *statementProcessor) processRecord(ctx context.Context, rec *statement.Record) {
	var (
		result      *GenerationResult
		allocations []*statement.WardAllocation
		err         error
	)

	recovered := panics.Try(func() {
		result, allocations, err = s.generate(ctx, rec)
	})
	if recovered != nil {
		err = recovered.AsError()
	}

	switch {
	case err != nil:
		s.Logger.Errorw("statement generation failed",
			"statement_id", rec.ID,
			"target", rec.Target.String(),
			"error", err,
		)
		rec.MarkFailed(ctx)
	case !result.HasFile():
		s.Logger.Infow("statement has no charges",
			"statement_id", rec.ID,
			"target", rec.Target.String(),
			"period", rec.Period().String(),
		)
		rec.MarkFailed(ctx)
	default:
		if rec.Target.IsOrganization() {
			rec.WardAllocations = allocations
		}
		rec.MarkCompleted(ctx, result.FilePath)
	}
}

func (s *statementProcessor) generate(ctx context.Context, rec *statement.Record) (*GenerationResult, []*statement.WardAllocation, error) {
	if err := rec.Target.Validate(); err != nil {
		return nil, nil, err
	}

	result, err := s.generator.Generate(ctx, rec.Target, rec.Period())
	if err != nil {
		return nil, nil, err
	}
	if !result.HasFile() || !rec.Target.IsOrganization() {
		return result, nil, nil
	}

	allocations, err := s.allocateWards(ctx, rec, result.Charges)
	if err != nil {
		return nil, nil, err
	}
	return result, allocations, nil
}

// allocateWards fills each ward allocation with the patients that were charged
// under that ward. Charge rows carry billing ward codes which are mapped back
// to local ward ids.
func (s *statementProcessor) allocateWards(ctx context.Context, rec *statement.Record, charges []*billing.ChargeRow) ([]*statement.WardAllocation, error) {
	wards, err := s.OrganizationRepo.ListWards(ctx, rec.Target.ID)
	if err != nil {
		return nil, err
	}
	wardByCode := make(map[string]int64, len(wards))
	for _, w := range wards {
		wardByCode[w.ExternalID] = w.ID
	}

	patientsByWard := make(map[int64][]int64)
	for _, c := range charges {
		wardID, ok := wardByCode[c.WardID]
		if !ok {
			continue
		}
		patientsByWard[wardID] = append(patientsByWard[wardID], c.PatientID)
	}

	allocations := make([]*statement.WardAllocation, 0, len(rec.WardAllocations))
	seen := make(map[int64]bool, len(rec.WardAllocations))
	for _, a := range rec.WardAllocations {
		next := &statement.WardAllocation{
			ID:          a.ID,
			StatementID: a.StatementID,
			WardID:      a.WardID,
		}
		next.SetPatients(patientsByWard[a.WardID])
		allocations = append(allocations, next)
		seen[a.WardID] = true
	}

	// wards added to the organization after intake
	newWards := lo.Filter(lo.Keys(patientsByWard), func(id int64, _ int) bool { return !seen[id] })
	slices.Sort(newWards)
	for _, wardID := range newWards {
		a := &statement.WardAllocation{StatementID: rec.ID, WardID: wardID}
		a.SetPatients(patientsByWard[wardID])
		allocations = append(allocations, a)
	}
	return allocations, nil
}
