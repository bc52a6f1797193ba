package postgres

import (
	"context"
	"database/sql"

	"github.com/rxledger/statements/internal/domain/patient"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/types"
)

const patientColumns = `id, first_name, last_name, email, status, created_at, updated_at, created_by, updated_by`

type patientRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPatientRepository(db *postgres.DB, logger *logger.Logger) patient.Repository {
	return &patientRepository{db: db, logger: logger}
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*patient.Patient, error) {
	var p patient.Patient
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND status = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id, types.StatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(err).
				WithHint("Patient not found").
				WithReportableDetails(map[string]any{
					"patient_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to retrieve patient").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *patientRepository) ListActive(ctx context.Context) ([]*patient.Patient, error) {
	var patients []*patient.Patient
	query := `SELECT ` + patientColumns + ` FROM patients WHERE status = $1 ORDER BY id ASC`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &patients, query, types.StatusActive); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list patients").
			Mark(ierr.ErrDatabase)
	}
	return patients, nil
}
