package types

import (
	"fmt"
	"time"

	ierr "github.com/rxledger/statements/internal/errors"
)

// StatementStatus is the generation state of a statement record
type StatementStatus string

const (
	StatementStatusPending   StatementStatus = "Pending"
	StatementStatusCompleted StatementStatus = "Completed"
	StatementStatusFailed    StatementStatus = "Failed"
	// StatementStatusSent only ever appears in a record's status history. The record
	// itself stays Completed once its file has been delivered.
	StatementStatusSent StatementStatus = "Sent"
)

// IsRecordStatus reports whether s can be the current status of a record
func (s StatementStatus) IsRecordStatus() bool {
	switch s {
	case StatementStatusPending, StatementStatusCompleted, StatementStatusFailed:
		return true
	}
	return false
}

func (s StatementStatus) Validate() error {
	if !s.IsRecordStatus() {
		return ierr.NewErrorf("invalid statement status: %s", s).
			WithHintf("status must be one of %s, %s or %s",
				StatementStatusPending, StatementStatusCompleted, StatementStatusFailed).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TargetType is the kind of billing subject a statement is produced for.
// The values double as the generation type accepted by the intake surface.
type TargetType string

const (
	TargetTypeOrganization TargetType = "Organization"
	TargetTypePatient      TargetType = "Patient"
)

func (t TargetType) Validate() error {
	switch t {
	case TargetTypeOrganization, TargetTypePatient:
		return nil
	}
	return ierr.NewErrorf("unknown generation type: %q", string(t)).
		WithHintf("generation type must be %s or %s", TargetTypeOrganization, TargetTypePatient).
		Mark(ierr.ErrValidation)
}

// FilePrefix is the prefix used when naming rendered statement files
func (t TargetType) FilePrefix() string {
	if t == TargetTypeOrganization {
		return "ORG"
	}
	return "PAT"
}

// Target identifies exactly one organization or one patient by local id
type Target struct {
	Type TargetType `json:"type"`
	ID   int64      `json:"id"`
}

func OrganizationTarget(id int64) Target {
	return Target{Type: TargetTypeOrganization, ID: id}
}

func PatientTarget(id int64) Target {
	return Target{Type: TargetTypePatient, ID: id}
}

func (t Target) IsOrganization() bool {
	return t.Type == TargetTypeOrganization
}

func (t Target) IsPatient() bool {
	return t.Type == TargetTypePatient
}

func (t Target) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.ID <= 0 {
		return ierr.NewError("missing target id").
			WithHint("A target id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Type, t.ID)
}

// DateLayout is the calendar day format used on the API surface and in file names
const DateLayout = "2006-01-02"

// Period is a closed range of calendar days [From, To]
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewPeriod truncates both bounds to calendar days in UTC
func NewPeriod(from, to time.Time) Period {
	return Period{From: TruncateToDay(from), To: TruncateToDay(to)}
}

func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return ierr.NewError("period bounds are required").
			WithHint("Both from and to dates are required").
			Mark(ierr.ErrValidation)
	}
	if p.To.Before(p.From) {
		return ierr.NewError("period end before start").
			WithHint("The to date must be on or after the from date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Overlaps reports whether [start, end] shares at least one day with p
func (p Period) Overlaps(start, end time.Time) bool {
	return !TruncateToDay(start).After(p.To) && !TruncateToDay(end).Before(p.From)
}

// EndExclusive is the first instant after the last day of the period, for half-open queries
func (p Period) EndExclusive() time.Time {
	return p.To.AddDate(0, 0, 1)
}

func (p Period) String() string {
	return fmt.Sprintf("%s - %s", p.From.Format(DateLayout), p.To.Format(DateLayout))
}

// TruncateToDay drops the clock part of t, in UTC
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
