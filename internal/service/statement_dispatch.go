package service

import (
	"context"
	"path"
	"strings"

	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/domain/statement"
	"github.com/rxledger/statements/internal/email"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

// StatementDispatchService emails the latest statement file of a target
type StatementDispatchService interface {
	SendLatest(ctx context.Context, target types.Target) (*dto.SendStatementResponse, error)
	SendLatestBulk(ctx context.Context, req *dto.SendStatementsRequest) (*dto.SendStatementsResponse, error)
}

type statementDispatchService struct {
	ServiceParams
}

func NewStatementDispatchService(params ServiceParams) StatementDispatchService {
	return &statementDispatchService{
		ServiceParams: params,
	}
}

// recipient is who a statement is addressed to
type recipient struct {
	name  string
	email string
}

func (s *statementDispatchService) SendLatest(ctx context.Context, target types.Target) (*dto.SendStatementResponse, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.StatementRepo.GetLatestWithFile(ctx, target)
	if err != nil {
		return nil, err
	}

	if rec.IsSent {
		return nil, ierr.WithError(statement.ErrAlreadySent).
			WithHintf("Statement %d has already been sent", rec.ID).
			WithReportableDetails(map[string]any{
				"statement_id": rec.ID,
				"target":       target.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	to, err := s.recipientFor(ctx, target)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(to.email) == "" {
		return nil, ierr.WithError(statement.ErrNoEmailAddress).
			WithHintf("%s has no email address", to.name).
			Mark(ierr.ErrValidation)
	}

	content, err := s.FileStore.Open(ctx, *rec.FilePath)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(statement.ErrFileMissing).
				WithHintf("The file for statement %d is missing", rec.ID).
				WithReportableDetails(map[string]any{
					"statement_id": rec.ID,
					"path":         *rec.FilePath,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	messageID, err := s.EmailSender.SendStatement(ctx, &email.StatementEmail{
		ToAddress:     to.email,
		RecipientName: to.name,
		Period:        rec.Period().String(),
		Filename:      path.Base(*rec.FilePath),
		Content:       content,
	})
	if err != nil {
		return nil, ierr.WithError(statement.ErrDeliveryFailed).
			WithMessage(err.Error()).
			WithHintf("Statement %d could not be emailed", rec.ID).
			Mark(ierr.ErrHTTPClient)
	}

	rec.MarkSent(ctx)
	if err := s.StatementRepo.Update(ctx, rec); err != nil {
		// the email is out, the next send would report this record as unsent
		s.Logger.Errorw("statement sent but not marked",
			"statement_id", rec.ID,
			"message_id", messageID,
			"error", err,
		)
		return nil, err
	}

	s.Logger.Infow("statement sent",
		"statement_id", rec.ID,
		"target", target.String(),
		"message_id", messageID,
	)
	return &dto.SendStatementResponse{
		Target:      target,
		StatementID: lo.ToPtr(rec.ID),
		Status:      dto.DispatchStatusSent,
		MessageID:   messageID,
	}, nil
}

// SendLatestBulk sends each target independently. Targets with nothing to
// send or an already sent statement are skipped, other failures are reported
// per target.
func (s *statementDispatchService) SendLatestBulk(ctx context.Context, req *dto.SendStatementsRequest) (*dto.SendStatementsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &dto.SendStatementsResponse{Results: make([]*dto.SendStatementResponse, 0, len(req.Targets))}
	for _, t := range req.Targets {
		target := t.ToTarget()

		result, err := s.SendLatest(ctx, target)
		if err == nil {
			resp.Sent++
			resp.Results = append(resp.Results, result)
			continue
		}

		result = &dto.SendStatementResponse{Target: target, Reason: err.Error()}
		if ierr.Is(err, statement.ErrAlreadySent) || ierr.Is(err, statement.ErrStatementNotFound) {
			result.Status = dto.DispatchStatusSkipped
			resp.Skipped++
		} else {
			result.Status = dto.DispatchStatusFailed
			resp.Failed++
			s.Logger.Warnw("statement dispatch failed",
				"target", target.String(),
				"error", err,
			)
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (s *statementDispatchService) recipientFor(ctx context.Context, target types.Target) (*recipient, error) {
	if target.IsOrganization() {
		org, err := s.OrganizationRepo.Get(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		return &recipient{name: org.Name, email: org.Email}, nil
	}
	p, err := s.PatientRepo.Get(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	return &recipient{name: p.DisplayName(), email: p.Email}, nil
}
