package billing

import (
	"context"
)

// Store is the read-only view of the external billing data source
type Store interface {
	// ListCharges returns charge lines in the period that belong to a paid or
	// posted payment, ordered by date then patient
	ListCharges(ctx context.Context, q *Query) ([]*ChargeRow, error)

	// ListPatientSummaries returns one summary row per patient for the period
	ListPatientSummaries(ctx context.Context, q *Query) ([]*PatientSummary, error)
}
