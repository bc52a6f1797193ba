package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rxledger/statements/internal/domain/statement"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

const statementColumns = `
	id, organization_id, patient_id, start_date, end_date, statement_status,
	status_history, file_path, is_sent,
	status, created_at, updated_at, created_by, updated_by`

type statementRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewStatementRepository(db *postgres.DB, logger *logger.Logger) statement.Repository {
	return &statementRepository{db: db, logger: logger}
}

// statementRow mirrors the statements table. Exactly one of OrganizationID
// and PatientID is set.
type statementRow struct {
	ID              int64                   `db:"id"`
	OrganizationID  sql.NullInt64           `db:"organization_id"`
	PatientID       sql.NullInt64           `db:"patient_id"`
	StartDate       time.Time               `db:"start_date"`
	EndDate         time.Time               `db:"end_date"`
	StatementStatus types.StatementStatus   `db:"statement_status"`
	StatusHistory   statement.StatusHistory `db:"status_history"`
	FilePath        sql.NullString          `db:"file_path"`
	IsSent          bool                    `db:"is_sent"`
	types.BaseModel
}

func (row *statementRow) toDomain() *statement.Record {
	r := &statement.Record{
		ID:              row.ID,
		StartDate:       types.TruncateToDay(row.StartDate),
		EndDate:         types.TruncateToDay(row.EndDate),
		StatementStatus: row.StatementStatus,
		StatusHistory:   row.StatusHistory,
		IsSent:          row.IsSent,
		BaseModel:       row.BaseModel,
	}
	if row.OrganizationID.Valid {
		r.Target = types.OrganizationTarget(row.OrganizationID.Int64)
	} else {
		r.Target = types.PatientTarget(row.PatientID.Int64)
	}
	if row.FilePath.Valid {
		r.FilePath = lo.ToPtr(row.FilePath.String)
	}
	return r
}

func targetColumns(t types.Target) (org sql.NullInt64, patient sql.NullInt64) {
	if t.IsOrganization() {
		return sql.NullInt64{Int64: t.ID, Valid: true}, sql.NullInt64{}
	}
	return sql.NullInt64{}, sql.NullInt64{Int64: t.ID, Valid: true}
}

func targetColumn(t types.TargetType) string {
	if t == types.TargetTypeOrganization {
		return "organization_id"
	}
	return "patient_id"
}

func (r *statementRepository) Create(ctx context.Context, rec *statement.Record) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)
		orgID, patientID := targetColumns(rec.Target)

		query := `
		INSERT INTO statements (
			organization_id, patient_id, start_date, end_date, statement_status,
			status_history, file_path, is_sent,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) RETURNING id`

		err := q.GetContext(ctx, &rec.ID, query,
			orgID,
			patientID,
			rec.StartDate,
			rec.EndDate,
			rec.StatementStatus,
			rec.StatusHistory,
			rec.FilePath,
			rec.IsSent,
			rec.Status,
			rec.CreatedAt,
			rec.UpdatedAt,
			rec.CreatedBy,
			rec.UpdatedBy,
		)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create statement").
				WithReportableDetails(map[string]any{
					"target": rec.Target.String(),
				}).
				Mark(ierr.ErrDatabase)
		}

		return r.insertAllocations(ctx, q, rec)
	})
}

func (r *statementRepository) insertAllocations(ctx context.Context, q postgres.Querier, rec *statement.Record) error {
	for _, a := range rec.WardAllocations {
		a.StatementID = rec.ID
		err := q.GetContext(ctx, &a.ID, `
		INSERT INTO statement_ward_allocations (statement_id, ward_id, patient_ids)
		VALUES ($1, $2, $3) RETURNING id`,
			a.StatementID, a.WardID, a.PatientIDs,
		)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to save ward allocation").
				WithReportableDetails(map[string]any{
					"statement_id": rec.ID,
					"ward_id":      a.WardID,
				}).
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *statementRepository) Get(ctx context.Context, id int64) (*statement.Record, error) {
	q := r.db.GetQuerier(ctx)

	var row statementRow
	query := `SELECT ` + statementColumns + ` FROM statements WHERE id = $1 AND status = $2`
	if err := q.GetContext(ctx, &row, query, id, types.StatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.WithError(statement.ErrStatementNotFound).
				WithHintf("Statement %d was not found", id).
				WithReportableDetails(map[string]any{
					"statement_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to retrieve statement").
			Mark(ierr.ErrDatabase)
	}

	records := []*statement.Record{row.toDomain()}
	if err := r.loadAllocations(ctx, q, records); err != nil {
		return nil, err
	}
	return records[0], nil
}

func (r *statementRepository) Update(ctx context.Context, rec *statement.Record) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		updated, err := r.update(ctx, rec, "")
		if err != nil {
			return err
		}
		if !updated {
			return ierr.WithError(statement.ErrStatementNotFound).
				WithHintf("Statement %d was not found", rec.ID).
				Mark(ierr.ErrNotFound)
		}
		return nil
	})
}

func (r *statementRepository) UpdateProcessed(ctx context.Context, rec *statement.Record, readAt time.Time) (bool, error) {
	var updated bool
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = r.update(ctx, rec,
			`AND statement_status = $13 AND status = $14 AND updated_at = $15`,
			types.StatementStatusPending, types.StatusActive, readAt,
		)
		return err
	})
	return updated, err
}

// update writes every mutable column and replaces the allocations when the
// row matches id plus the extra guard. It reports whether a row matched.
func (r *statementRepository) update(ctx context.Context, rec *statement.Record, guard string, guardArgs ...any) (bool, error) {
	q := r.db.GetQuerier(ctx)
	orgID, patientID := targetColumns(rec.Target)

	query := `
		UPDATE statements SET
			organization_id = $1, patient_id = $2, start_date = $3, end_date = $4,
			statement_status = $5, status_history = $6, file_path = $7, is_sent = $8,
			status = $9, updated_at = $10, updated_by = $11
		WHERE id = $12 ` + guard

	args := append([]any{
		orgID,
		patientID,
		rec.StartDate,
		rec.EndDate,
		rec.StatementStatus,
		rec.StatusHistory,
		rec.FilePath,
		rec.IsSent,
		rec.Status,
		rec.UpdatedAt,
		rec.UpdatedBy,
		rec.ID,
	}, guardArgs...)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to update statement").
			WithReportableDetails(map[string]any{
				"statement_id": rec.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to update statement").
			Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM statement_ward_allocations WHERE statement_id = $1`, rec.ID); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to replace ward allocations").
			Mark(ierr.ErrDatabase)
	}
	return true, r.insertAllocations(ctx, q, rec)
}

func (r *statementRepository) SoftDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	q := r.db.GetQuerier(ctx)

	query, args, err := sqlx.In(`
		UPDATE statements SET status = ?, updated_at = ?, updated_by = ?
		WHERE id IN (?)`,
		types.StatusDeleted, time.Now().UTC(), types.GetUserID(ctx), ids,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build delete query").
			Mark(ierr.ErrSystem)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete statements").
			WithReportableDetails(map[string]any{
				"statement_ids": ids,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *statementRepository) ListOverlapping(ctx context.Context, target types.Target, p types.Period) ([]*statement.Record, error) {
	query := `SELECT ` + statementColumns + ` FROM statements
		WHERE ` + targetColumn(target.Type) + ` = $1
		AND status = $2
		AND start_date <= $3 AND end_date >= $4
		ORDER BY id DESC`

	return r.selectRecords(ctx, query, target.ID, types.StatusActive, p.To, p.From)
}

func (r *statementRepository) ListTargetIDsWithOverlap(ctx context.Context, targetType types.TargetType, p types.Period) ([]int64, error) {
	column := targetColumn(targetType)
	query := `SELECT DISTINCT ` + column + ` FROM statements
		WHERE ` + column + ` IS NOT NULL
		AND status = $1
		AND start_date <= $2 AND end_date >= $3`

	var ids []int64
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &ids, query, types.StatusActive, p.To, p.From); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list targets with statements").
			Mark(ierr.ErrDatabase)
	}
	return ids, nil
}

func (r *statementRepository) ListPending(ctx context.Context) ([]*statement.Record, error) {
	query := `SELECT ` + statementColumns + ` FROM statements
		WHERE statement_status = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`

	return r.selectRecords(ctx, query, types.StatementStatusPending, types.StatusActive)
}

func (r *statementRepository) GetLatestWithFile(ctx context.Context, target types.Target) (*statement.Record, error) {
	query := `SELECT ` + statementColumns + ` FROM statements
		WHERE ` + targetColumn(target.Type) + ` = $1
		AND status = $2
		AND file_path IS NOT NULL AND file_path <> ''
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	records, err := r.selectRecords(ctx, query, target.ID, types.StatusActive)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ierr.WithError(statement.ErrStatementNotFound).
			WithHintf("No invoice found for %s", target).
			Mark(ierr.ErrNotFound)
	}
	return records[0], nil
}

func (r *statementRepository) List(ctx context.Context, filter *types.StatementFilter) ([]*statement.Record, error) {
	where, args, err := buildStatementWhere(filter)
	if err != nil {
		return nil, err
	}

	order := "DESC"
	if filter.GetOrder() == types.OrderAsc {
		order = "ASC"
	}
	query := `SELECT ` + statementColumns + ` FROM statements` + where +
		` ORDER BY created_at ` + order + `, id ` + order
	if !filter.IsUnlimited() {
		args = append(args, filter.GetLimit(), filter.GetOffset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	return r.selectRecords(ctx, query, args...)
}

func (r *statementRepository) Count(ctx context.Context, filter *types.StatementFilter) (int, error) {
	where, args, err := buildStatementWhere(filter)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM statements`+where, args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count statements").
			WithReportableDetails(map[string]any{
				"filter": filter,
			}).
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

// buildStatementWhere renders the filter as a WHERE clause with positional args
func buildStatementWhere(filter *types.StatementFilter) (string, []any, error) {
	conds := []string{"status = $1"}
	args := []any{types.StatusActive}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.TargetType != nil {
		column := targetColumn(*filter.TargetType)
		if filter.TargetID != nil {
			add(column+" = $%d", *filter.TargetID)
		} else {
			conds = append(conds, column+" IS NOT NULL")
		}
	}
	if len(filter.StatementStatus) > 0 {
		statuses := lo.Map(filter.StatementStatus, func(s types.StatementStatus, _ int) string {
			return string(s)
		})
		add("statement_status = ANY($%d)", pq.Array(statuses))
	}
	if filter.IsSent != nil {
		add("is_sent = $%d", *filter.IsSent)
	}
	period, err := filter.GetPeriod()
	if err != nil {
		return "", nil, err
	}
	if period != nil {
		add("start_date <= $%d", period.To)
		add("end_date >= $%d", period.From)
	}

	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (r *statementRepository) selectRecords(ctx context.Context, query string, args ...any) ([]*statement.Record, error) {
	q := r.db.GetQuerier(ctx)

	var rows []statementRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list statements").
			Mark(ierr.ErrDatabase)
	}

	records := make([]*statement.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toDomain())
	}
	if err := r.loadAllocations(ctx, q, records); err != nil {
		return nil, err
	}
	return records, nil
}

// loadAllocations attaches ward allocations to the organization records in one query
func (r *statementRepository) loadAllocations(ctx context.Context, q postgres.Querier, records []*statement.Record) error {
	orgRecords := lo.Filter(records, func(rec *statement.Record, _ int) bool {
		return rec.Target.IsOrganization()
	})
	if len(orgRecords) == 0 {
		return nil
	}

	ids := lo.Map(orgRecords, func(rec *statement.Record, _ int) int64 { return rec.ID })
	query, args, err := sqlx.In(`
		SELECT id, statement_id, ward_id, patient_ids
		FROM statement_ward_allocations
		WHERE statement_id IN (?)
		ORDER BY id ASC`, ids)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build allocation query").
			Mark(ierr.ErrSystem)
	}

	var allocations []*statement.WardAllocation
	if err := q.SelectContext(ctx, &allocations, q.Rebind(query), args...); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to load ward allocations").
			Mark(ierr.ErrDatabase)
	}

	byStatement := lo.GroupBy(allocations, func(a *statement.WardAllocation) int64 { return a.StatementID })
	for _, rec := range orgRecords {
		rec.WardAllocations = byStatement[rec.ID]
	}
	return nil
}
