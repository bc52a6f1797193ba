package organization

import (
	"github.com/rxledger/statements/internal/types"
)

// Organization is a billed facility, for example a long term care home
type Organization struct {
	ID int64 `db:"id" json:"id"`
	// ExternalID is the facility code used by the intake surface
	ExternalID string `db:"external_id" json:"external_id"`
	Name       string `db:"name" json:"name"`
	Email      string `db:"email" json:"email"`
	types.BaseModel
}

// Ward is a unit of an organization. ExternalID is the ward code the billing
// data source uses on charge rows.
type Ward struct {
	ID             int64  `db:"id" json:"id"`
	OrganizationID int64  `db:"organization_id" json:"organization_id"`
	ExternalID     string `db:"external_id" json:"external_id"`
	Name           string `db:"name" json:"name"`
	types.BaseModel
}
