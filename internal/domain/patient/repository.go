package patient

import (
	"context"
)

// Repository is the read side of patients needed for statements
type Repository interface {
	// Get returns an active patient
	Get(ctx context.Context, id int64) (*Patient, error)

	// ListActive returns all active patients
	ListActive(ctx context.Context) ([]*Patient, error)
}
