package statement

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

// Record is one generated or queued billing statement for a single target and period
type Record struct {
	ID              int64                 `json:"id"`
	Target          types.Target          `json:"target"`
	StartDate       time.Time             `json:"start_date"`
	EndDate         time.Time             `json:"end_date"`
	StatementStatus types.StatementStatus `json:"statement_status"`
	StatusHistory   StatusHistory         `json:"status_history"`
	FilePath        *string               `json:"file_path,omitempty"`
	IsSent          bool                  `json:"is_sent"`
	WardAllocations []*WardAllocation     `json:"ward_allocations,omitempty"`
	types.BaseModel
}

// WardAllocation is the snapshot of which patients under a ward fed an
// organization statement. PatientIDs is a comma separated list of patient ids.
type WardAllocation struct {
	ID          int64  `db:"id" json:"id"`
	StatementID int64  `db:"statement_id" json:"statement_id"`
	WardID      int64  `db:"ward_id" json:"ward_id"`
	PatientIDs  string `db:"patient_ids" json:"patient_ids"`
}

// NewRecord builds a Pending record with a single Pending history entry.
// Organization targets get one empty allocation per ward.
func NewRecord(ctx context.Context, target types.Target, period types.Period, isSent bool, wardIDs []int64) *Record {
	r := &Record{
		Target:    target,
		StartDate: period.From,
		EndDate:   period.To,
		IsSent:    isSent,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	r.AppendStatusAt(ctx, types.StatementStatusPending, r.CreatedAt)
	if target.IsOrganization() {
		r.WardAllocations = NewWardAllocations(wardIDs)
	}
	return r
}

// NewWardAllocations returns one allocation with an empty patient list per ward
func NewWardAllocations(wardIDs []int64) []*WardAllocation {
	return lo.Map(lo.Uniq(wardIDs), func(id int64, _ int) *WardAllocation {
		return &WardAllocation{WardID: id}
	})
}

func (r *Record) Period() types.Period {
	return types.NewPeriod(r.StartDate, r.EndDate)
}

// ResetForReuse turns an existing unsent record into the keeper for a new request:
// the file is dropped, the period and sent flag are overwritten, a new Pending
// entry is appended and ward allocations are rebuilt empty.
func (r *Record) ResetForReuse(ctx context.Context, period types.Period, isSent bool, wardIDs []int64) {
	r.FilePath = nil
	r.StartDate = period.From
	r.EndDate = period.To
	r.IsSent = isSent
	r.AppendStatus(ctx, types.StatementStatusPending)
	if r.Target.IsOrganization() {
		r.WardAllocations = NewWardAllocations(wardIDs)
	} else {
		r.WardAllocations = nil
	}
}

// MarkCompleted records a successful generation
func (r *Record) MarkCompleted(ctx context.Context, filePath string) {
	r.FilePath = lo.ToPtr(filePath)
	r.AppendStatus(ctx, types.StatementStatusCompleted)
}

// MarkFailed records a failed generation. The file path is cleared so that it
// is only ever set on Completed records.
func (r *Record) MarkFailed(ctx context.Context) {
	r.FilePath = nil
	r.AppendStatus(ctx, types.StatementStatusFailed)
}

// MarkSent flips the sent flag and logs the delivery
func (r *Record) MarkSent(ctx context.Context) {
	r.IsSent = true
	r.AppendStatus(ctx, types.StatementStatusSent)
}

// HasFile reports whether a rendered statement file is attached
func (r *Record) HasFile() bool {
	return r.FilePath != nil && *r.FilePath != ""
}

func (r *Record) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if err := r.Period().Validate(); err != nil {
		return err
	}
	if err := r.StatementStatus.Validate(); err != nil {
		return err
	}
	if r.HasFile() != (r.StatementStatus == types.StatementStatusCompleted) {
		return ierr.NewErrorf("statement %d has status %s with file %v", r.ID, r.StatementStatus, r.HasFile()).
			WithHint("A statement file is only attached to completed statements").
			Mark(ierr.ErrValidation)
	}
	if r.Target.IsPatient() && len(r.WardAllocations) > 0 {
		return ierr.NewError("patient statement with ward allocations").
			WithHint("Ward allocations only apply to organization statements").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SetPatients stores ids as a sorted, de-duplicated comma separated list
func (a *WardAllocation) SetPatients(ids []int64) {
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	a.PatientIDs = strings.Join(lo.Map(ids, func(id int64, _ int) string {
		return strconv.FormatInt(id, 10)
	}), ",")
}

// Patients parses PatientIDs, skipping anything that is not an id
func (a *WardAllocation) Patients() []int64 {
	if a.PatientIDs == "" {
		return nil
	}
	return lo.FilterMap(strings.Split(a.PatientIDs, ","), func(s string, _ int) (int64, bool) {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return id, err == nil
	})
}
