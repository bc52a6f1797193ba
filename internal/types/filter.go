package types

import (
	"github.com/samber/lo"

	ierr "github.com/rxledger/statements/internal/errors"
)

const (
	FILTER_DEFAULT_LIMIT = 50

	OrderDesc = "desc"
	OrderAsc  = "asc"
)

// QueryFilter represents a generic query filter with optional fields
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset *int    `json:"offset,omitempty" form:"offset" validate:"omitempty,min=0"`
	Order  *string `json:"order,omitempty" form:"order" validate:"omitempty,oneof=asc desc"`
}

// NewDefaultQueryFilter defines default values for query filters
func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
		Order:  lo.ToPtr(OrderDesc),
	}
}

// NewNoLimitQueryFilter returns a filter with no pagination limits
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Offset: lo.ToPtr(0),
		Order:  lo.ToPtr(OrderDesc),
	}
}

// IsUnlimited returns true if this is an unlimited query
func (f QueryFilter) IsUnlimited() bool {
	return f.Limit == nil
}

func (f QueryFilter) GetLimit() int {
	if f.Limit == nil {
		return 0
	}
	return *f.Limit
}

func (f QueryFilter) GetOffset() int {
	if f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f QueryFilter) GetOrder() string {
	if f.Order == nil {
		return OrderDesc
	}
	return *f.Order
}

func (f QueryFilter) Validate() error {
	if f.Limit != nil && (*f.Limit < 1 || *f.Limit > 1000) {
		return ierr.NewError("limit must be between 1 and 1000").
			WithHint("Limit must be between 1 and 1000").
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("offset must be non-negative").
			WithHint("Offset must be non-negative").
			Mark(ierr.ErrValidation)
	}
	if f.Order != nil && *f.Order != OrderAsc && *f.Order != OrderDesc {
		return ierr.NewError("order must be either 'asc' or 'desc'").
			WithHint("Order must be either 'asc' or 'desc'").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// StatementFilter narrows statement record listings
type StatementFilter struct {
	*QueryFilter
	TargetType      *TargetType       `json:"target_type,omitempty" form:"target_type"`
	TargetID        *int64            `json:"target_id,omitempty" form:"target_id"`
	StatementStatus []StatementStatus `json:"statement_status,omitempty" form:"statement_status"`
	IsSent          *bool             `json:"is_sent,omitempty" form:"is_sent"`
	// Period, when both bounds are set, keeps records overlapping [PeriodFrom, PeriodTo]
	PeriodFrom *string `json:"period_from,omitempty" form:"period_from"`
	PeriodTo   *string `json:"period_to,omitempty" form:"period_to"`
}

func NewStatementFilter() *StatementFilter {
	return &StatementFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *StatementFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.TargetType != nil {
		if err := f.TargetType.Validate(); err != nil {
			return err
		}
	}
	if f.TargetID != nil && f.TargetType == nil {
		return ierr.NewError("target_id requires target_type").
			WithHint("Provide target_type together with target_id").
			Mark(ierr.ErrValidation)
	}
	for _, s := range f.StatementStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if _, err := f.GetPeriod(); err != nil {
		return err
	}
	return nil
}

// GetPeriod parses the optional period bounds; nil means no period restriction
func (f *StatementFilter) GetPeriod() (*Period, error) {
	if f.PeriodFrom == nil && f.PeriodTo == nil {
		return nil, nil
	}
	if f.PeriodFrom == nil || f.PeriodTo == nil {
		return nil, ierr.NewError("incomplete period").
			WithHint("Provide both period_from and period_to").
			Mark(ierr.ErrValidation)
	}
	p, err := ParsePeriod(*f.PeriodFrom, *f.PeriodTo)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
