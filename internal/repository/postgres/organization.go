package postgres

import (
	"context"
	"database/sql"

	"github.com/rxledger/statements/internal/domain/organization"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/types"
)

const organizationColumns = `id, external_id, name, email, status, created_at, updated_at, created_by, updated_by`

type organizationRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewOrganizationRepository(db *postgres.DB, logger *logger.Logger) organization.Repository {
	return &organizationRepository{db: db, logger: logger}
}

func (r *organizationRepository) Get(ctx context.Context, id int64) (*organization.Organization, error) {
	var org organization.Organization
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1 AND status = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &org, query, id, types.StatusActive); err != nil {
		return nil, organizationErr(err, map[string]any{"organization_id": id})
	}
	return &org, nil
}

func (r *organizationRepository) GetByExternalID(ctx context.Context, externalID string) (*organization.Organization, error) {
	var org organization.Organization
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE external_id = $1 AND status = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &org, query, externalID, types.StatusActive); err != nil {
		return nil, organizationErr(err, map[string]any{"external_id": externalID})
	}
	return &org, nil
}

func (r *organizationRepository) ListActive(ctx context.Context) ([]*organization.Organization, error) {
	var orgs []*organization.Organization
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE status = $1 ORDER BY id ASC`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &orgs, query, types.StatusActive); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list organizations").
			Mark(ierr.ErrDatabase)
	}
	return orgs, nil
}

func (r *organizationRepository) ListWards(ctx context.Context, organizationID int64) ([]*organization.Ward, error) {
	var wards []*organization.Ward
	query := `
		SELECT id, organization_id, external_id, name, status, created_at, updated_at, created_by, updated_by
		FROM wards
		WHERE organization_id = $1 AND status = $2
		ORDER BY id ASC`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &wards, query, organizationID, types.StatusActive); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list wards").
			WithReportableDetails(map[string]any{
				"organization_id": organizationID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return wards, nil
}

func organizationErr(err error, details map[string]any) error {
	if err == sql.ErrNoRows {
		return ierr.WithError(err).
			WithHint("Organization not found").
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHint("Failed to retrieve organization").
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}
