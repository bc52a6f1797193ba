package organization

import (
	"context"
)

// Repository is the read side of organizations and wards needed for statements
type Repository interface {
	// Get returns an active organization
	Get(ctx context.Context, id int64) (*Organization, error)

	// GetByExternalID returns an active organization by its facility code
	GetByExternalID(ctx context.Context, externalID string) (*Organization, error)

	// ListActive returns all active organizations
	ListActive(ctx context.Context) ([]*Organization, error)

	// ListWards returns the active wards of an organization
	ListWards(ctx context.Context, organizationID int64) ([]*Ward, error)
}
