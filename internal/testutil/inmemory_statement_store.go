package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

var _ statement.Repository = (*InMemoryStatementStore)(nil)

// InMemoryStatementStore implements statement.Repository
type InMemoryStatementStore struct {
	*InMemoryStore[*statement.Record]
	allocationSeq *InMemoryStore[struct{}]
}

func NewInMemoryStatementStore() *InMemoryStatementStore {
	return &InMemoryStatementStore{
		InMemoryStore: NewInMemoryStore[*statement.Record](),
		allocationSeq: NewInMemoryStore[struct{}](),
	}
}

// copyStatement deep copies a record so callers never share state with the store
func copyStatement(r *statement.Record) *statement.Record {
	if r == nil {
		return nil
	}
	c := *r
	c.StatusHistory = append(statement.StatusHistory{}, r.StatusHistory...)
	if r.FilePath != nil {
		c.FilePath = lo.ToPtr(*r.FilePath)
	}
	if r.WardAllocations != nil {
		c.WardAllocations = lo.Map(r.WardAllocations, func(a *statement.WardAllocation, _ int) *statement.WardAllocation {
			ac := *a
			return &ac
		})
	}
	return &c
}

func (s *InMemoryStatementStore) assignAllocationIDs(r *statement.Record) {
	for _, a := range r.WardAllocations {
		a.StatementID = r.ID
		if a.ID == 0 {
			a.ID = s.allocationSeq.NextID()
		}
	}
}

func (s *InMemoryStatementStore) Create(ctx context.Context, r *statement.Record) error {
	if r == nil {
		return fmt.Errorf("statement cannot be nil")
	}
	r.ID = s.NextID()
	s.assignAllocationIDs(r)
	return s.InMemoryStore.Create(ctx, r.ID, copyStatement(r))
}

func (s *InMemoryStatementStore) Get(ctx context.Context, id int64) (*statement.Record, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || r.IsDeleted() {
		return nil, ierr.WithError(statement.ErrStatementNotFound).
			WithHintf("Statement %d was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyStatement(r), nil
}

// GetRaw returns a record regardless of its soft delete state
func (s *InMemoryStatementStore) GetRaw(ctx context.Context, id int64) (*statement.Record, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyStatement(r), nil
}

func (s *InMemoryStatementStore) Update(ctx context.Context, r *statement.Record) error {
	if r == nil {
		return fmt.Errorf("statement cannot be nil")
	}
	s.assignAllocationIDs(r)
	if err := s.InMemoryStore.Update(ctx, r.ID, copyStatement(r)); err != nil {
		return ierr.WithError(statement.ErrStatementNotFound).
			WithHintf("Statement %d was not found", r.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryStatementStore) UpdateProcessed(ctx context.Context, r *statement.Record, readAt time.Time) (bool, error) {
	if r == nil {
		return false, fmt.Errorf("statement cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[r.ID]
	if !ok || stored.IsDeleted() ||
		stored.StatementStatus != types.StatementStatusPending ||
		!stored.UpdatedAt.Equal(readAt) {
		return false, nil
	}
	s.assignAllocationIDs(r)
	s.items[r.ID] = copyStatement(r)
	return true, nil
}

func (s *InMemoryStatementStore) SoftDelete(ctx context.Context, ids []int64) error {
	now := time.Now().UTC()
	for _, id := range ids {
		r, err := s.InMemoryStore.Get(ctx, id)
		if err != nil {
			continue
		}
		c := copyStatement(r)
		c.Status = types.StatusDeleted
		c.Touch(ctx, now)
		if err := s.InMemoryStore.Update(ctx, id, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStatementStore) ListOverlapping(ctx context.Context, target types.Target, p types.Period) ([]*statement.Record, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *statement.Record, _ interface{}) bool {
		return !r.IsDeleted() && r.Target == target && p.Overlaps(r.StartDate, r.EndDate)
	}, func(a, b *statement.Record) bool {
		return a.ID > b.ID
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *statement.Record, _ int) *statement.Record { return copyStatement(r) }), nil
}

func (s *InMemoryStatementStore) ListTargetIDsWithOverlap(ctx context.Context, targetType types.TargetType, p types.Period) ([]int64, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *statement.Record, _ interface{}) bool {
		return !r.IsDeleted() && r.Target.Type == targetType && p.Overlaps(r.StartDate, r.EndDate)
	}, nil)
	if err != nil {
		return nil, err
	}
	return lo.Uniq(lo.Map(items, func(r *statement.Record, _ int) int64 { return r.Target.ID })), nil
}

func (s *InMemoryStatementStore) ListPending(ctx context.Context) ([]*statement.Record, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *statement.Record, _ interface{}) bool {
		return !r.IsDeleted() && r.StatementStatus == types.StatementStatusPending
	}, func(a, b *statement.Record) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *statement.Record, _ int) *statement.Record { return copyStatement(r) }), nil
}

func (s *InMemoryStatementStore) GetLatestWithFile(ctx context.Context, target types.Target) (*statement.Record, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *statement.Record, _ interface{}) bool {
		return !r.IsDeleted() && r.Target == target && r.HasFile()
	}, newestFirst)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.WithError(statement.ErrStatementNotFound).
			WithHintf("No invoice found for %s", target).
			Mark(ierr.ErrNotFound)
	}
	return copyStatement(items[0]), nil
}

func (s *InMemoryStatementStore) List(ctx context.Context, filter *types.StatementFilter) ([]*statement.Record, error) {
	sortFn := newestFirst
	if filter.GetOrder() == types.OrderAsc {
		sortFn = func(a, b *statement.Record) bool { return newestFirst(b, a) }
	}
	items, err := s.InMemoryStore.List(ctx, filter, statementFilterFn, sortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *statement.Record, _ int) *statement.Record { return copyStatement(r) }), nil
}

func (s *InMemoryStatementStore) Count(ctx context.Context, filter *types.StatementFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, statementFilterFn)
}

// Clear removes all records and resets the id sequences
func (s *InMemoryStatementStore) Clear() {
	s.InMemoryStore.Clear()
	s.allocationSeq.Clear()
}

func newestFirst(a, b *statement.Record) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func statementFilterFn(ctx context.Context, r *statement.Record, filter interface{}) bool {
	f, ok := filter.(*types.StatementFilter)
	if !ok {
		return false
	}
	if r.IsDeleted() {
		return false
	}
	if f.TargetType != nil && r.Target.Type != *f.TargetType {
		return false
	}
	if f.TargetID != nil && r.Target.ID != *f.TargetID {
		return false
	}
	if len(f.StatementStatus) > 0 && !lo.Contains(f.StatementStatus, r.StatementStatus) {
		return false
	}
	if f.IsSent != nil && r.IsSent != *f.IsSent {
		return false
	}
	if period, err := f.GetPeriod(); err == nil && period != nil {
		if !period.Overlaps(r.StartDate, r.EndDate) {
			return false
		}
	}
	return true
}
