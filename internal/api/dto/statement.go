package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/rxledger/statements/internal/validator"
	"github.com/samber/lo"
)

// GenerateStatementsRequest asks for statements for a period. Without ids every
// active target of the generation type that has no statement overlapping the
// period is a candidate.
type GenerateStatementsRequest struct {
	GenerationType types.TargetType `json:"generation_type" validate:"required" example:"Organization"`
	// OrganizationIDs are facility codes, used with generation type Organization
	OrganizationIDs []string `json:"organization_ids,omitempty" example:"MAPLE01"`
	// PatientIDs are used with generation type Patient
	PatientIDs []int64 `json:"patient_ids,omitempty"`
	From       string  `json:"from" validate:"required" example:"2024-03-01"`
	To         string  `json:"to" validate:"required" example:"2024-03-31"`
	IsSent     bool    `json:"is_sent"`
}

func (r *GenerateStatementsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.GenerationType.Validate(); err != nil {
		return err
	}
	if _, err := r.GetPeriod(); err != nil {
		return err
	}

	switch r.GenerationType {
	case types.TargetTypeOrganization:
		if len(r.PatientIDs) > 0 {
			return ierr.NewError("patient_ids given for organization statements").
				WithHint("Use organization_ids with generation type Organization").
				Mark(ierr.ErrValidation)
		}
		if lo.SomeBy(r.OrganizationIDs, func(id string) bool { return strings.TrimSpace(id) == "" }) {
			return ierr.NewError("blank organization id").
				WithHint("Organization ids must not be blank").
				Mark(ierr.ErrValidation)
		}
	case types.TargetTypePatient:
		if len(r.OrganizationIDs) > 0 {
			return ierr.NewError("organization_ids given for patient statements").
				WithHint("Use patient_ids with generation type Patient").
				Mark(ierr.ErrValidation)
		}
		if lo.SomeBy(r.PatientIDs, func(id int64) bool { return id <= 0 }) {
			return ierr.NewError("invalid patient id").
				WithHint("Patient ids must be positive").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// GetPeriod parses the requested period
func (r *GenerateStatementsRequest) GetPeriod() (types.Period, error) {
	return types.ParsePeriod(r.From, r.To)
}

// HasExplicitIDs reports whether the caller named the targets
func (r *GenerateStatementsRequest) HasExplicitIDs() bool {
	if r.GenerationType == types.TargetTypeOrganization {
		return len(r.OrganizationIDs) > 0
	}
	return len(r.PatientIDs) > 0
}

// GenerateStatementsResponse reports what intake did with each target
type GenerateStatementsResponse struct {
	Created int `json:"created"`
	Reused  int `json:"reused"`
	// Skipped lists the display names of targets that already have a sent
	// statement overlapping the period
	Skipped    []string                `json:"skipped"`
	Processing *ProcessPendingResponse `json:"processing,omitempty"`
}

// ProcessPendingResponse is the outcome of one pass over Pending statements
type ProcessPendingResponse struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	// Superseded counts records changed by someone else while the pass ran,
	// whose outcome was not written
	Superseded int `json:"superseded"`
	// Interrupted is set when the pass was cancelled before every record was handled
	Interrupted bool `json:"interrupted"`
}

// StatementTargetRequest names one statement target by local id
type StatementTargetRequest struct {
	Type types.TargetType `json:"type" validate:"required" example:"Patient"`
	ID   int64            `json:"id" validate:"required,gt=0"`
}

func (r *StatementTargetRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Type.Validate()
}

func (r *StatementTargetRequest) ToTarget() types.Target {
	return types.Target{Type: r.Type, ID: r.ID}
}

// ParseStatementTarget builds a target from path parameters
func ParseStatementTarget(targetType, id string) (*StatementTargetRequest, error) {
	parsed, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Target id must be a number").
			Mark(ierr.ErrValidation)
	}
	req := &StatementTargetRequest{Type: types.TargetType(targetType), ID: parsed}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// SendStatementsRequest dispatches the latest statement of each target
type SendStatementsRequest struct {
	Targets []StatementTargetRequest `json:"targets" validate:"required,min=1,dive"`
}

func (r *SendStatementsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for i := range r.Targets {
		if err := r.Targets[i].Type.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DispatchStatus is the per target outcome of a send
type DispatchStatus string

const (
	DispatchStatusSent    DispatchStatus = "sent"
	DispatchStatusSkipped DispatchStatus = "skipped"
	DispatchStatusFailed  DispatchStatus = "failed"
)

// SendStatementResponse is the outcome of sending one target's latest statement
type SendStatementResponse struct {
	Target      types.Target   `json:"target"`
	StatementID *int64         `json:"statement_id,omitempty"`
	Status      DispatchStatus `json:"status"`
	MessageID   string         `json:"message_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// SendStatementsResponse collects per target results of a bulk send
type SendStatementsResponse struct {
	Results []*SendStatementResponse `json:"results"`
	Sent    int                      `json:"sent"`
	Skipped int                      `json:"skipped"`
	Failed  int                      `json:"failed"`
}

// StatementResponse is a statement record with its history and allocations
type StatementResponse struct {
	*statement.Record
}

// ListStatementsResponse represents the response for listing statements
type ListStatementsResponse = types.ListResponse[*StatementResponse]

// ProcessingRunResponse summarizes one processing run started by the
// scheduler, the cron endpoint or an operator
type ProcessingRunResponse struct {
	RunID      string     `json:"run_id"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

// ProcessingStatusResponse is the operator view of the processor
type ProcessingStatusResponse struct {
	Running bool                   `json:"running"`
	LastRun *ProcessingRunResponse `json:"last_run,omitempty"`
}
