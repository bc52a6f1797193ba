package statement

import (
	"context"
	"time"

	"github.com/rxledger/statements/internal/types"
)

// Repository defines the persistence operations on statement records.
// Reads return active (non-deleted) records only unless stated otherwise.
type Repository interface {
	// Create inserts the record and its ward allocations and assigns r.ID
	Create(ctx context.Context, r *Record) error

	// Get retrieves an active record with its ward allocations
	Get(ctx context.Context, id int64) (*Record, error)

	// Update persists all mutable fields and replaces the ward allocations
	Update(ctx context.Context, r *Record) error

	// UpdateProcessed persists the outcome of processing r only if the stored
	// record is still active, still Pending and unchanged since readAt, its
	// updated_at when it was listed. It reports whether the row was written.
	UpdateProcessed(ctx context.Context, r *Record, readAt time.Time) (bool, error)

	// SoftDelete marks the given records deleted
	SoftDelete(ctx context.Context, ids []int64) error

	// ListOverlapping returns the target's records whose period overlaps p,
	// highest id first
	ListOverlapping(ctx context.Context, target types.Target, p types.Period) ([]*Record, error)

	// ListTargetIDsWithOverlap returns the distinct ids of targets of the given type
	// that have at least one record overlapping p
	ListTargetIDsWithOverlap(ctx context.Context, targetType types.TargetType, p types.Period) ([]int64, error)

	// ListPending returns all Pending records, oldest created first
	ListPending(ctx context.Context) ([]*Record, error)

	// GetLatestWithFile returns the most recently created record of the target
	// that has a file, regardless of status or period
	GetLatestWithFile(ctx context.Context, target types.Target) (*Record, error)

	// List retrieves records based on filter criteria
	List(ctx context.Context, filter *types.StatementFilter) ([]*Record, error)

	// Count returns the number of records matching filter
	Count(ctx context.Context, filter *types.StatementFilter) (int, error)
}
