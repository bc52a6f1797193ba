package billingsource

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rxledger/statements/internal/billingsource"
	"github.com/rxledger/statements/internal/domain/billing"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type billingStore struct {
	store  *billingsource.Store
	logger *logger.Logger
}

func NewBillingStore(store *billingsource.Store, logger *logger.Logger) billing.Store {
	return &billingStore{store: store, logger: logger}
}

const chargeQuery = `
	SELECT
		c.charge_date,
		c.patient_id,
		CONCAT(p.last_name, ', ', p.first_name) AS patient_name,
		COALESCE(c.ward_code, '') AS ward_id,
		c.code,
		c.description,
		c.tax_code,
		c.amount
	FROM charges c
	JOIN payments pay ON pay.id = c.payment_id
	JOIN patients p ON p.id = c.patient_id
	WHERE pay.status IN (?)
	AND c.charge_date >= ? AND c.charge_date < ?`

const chargeTotalsQuery = `
	SELECT
		c.patient_id,
		MAX(CONCAT(p.last_name, ', ', p.first_name)) AS patient_name,
		COALESCE(SUM(c.amount), 0) AS subtotal,
		COALESCE(SUM(c.tax_amount), 0) AS tax
	FROM charges c
	JOIN payments pay ON pay.id = c.payment_id
	JOIN patients p ON p.id = c.patient_id
	WHERE pay.status IN (?)
	AND c.charge_date >= ? AND c.charge_date < ?`

const paymentTotalsQuery = `
	SELECT pay.patient_id, COALESCE(SUM(pay.amount), 0) AS paid
	FROM payments pay
	WHERE pay.status IN (?)
	AND pay.payment_date >= ? AND pay.payment_date < ?
	AND pay.patient_id IN (?)
	GROUP BY pay.patient_id`

type paymentTotal struct {
	PatientID int64           `db:"patient_id"`
	Paid      decimal.Decimal `db:"paid"`
}

// scope narrows a charge query to the wards or the patient of q
func scope(q *billing.Query) (string, []any) {
	if len(q.WardIDs) > 0 {
		return " AND c.ward_code IN (?)", []any{q.WardIDs}
	}
	return " AND c.patient_id = ?", []any{*q.PatientID}
}

func (s *billingStore) ListCharges(ctx context.Context, q *billing.Query) ([]*billing.ChargeRow, error) {
	if q.IsEmpty() {
		return []*billing.ChargeRow{}, nil
	}

	clause, scopeArgs := scope(q)
	var b strings.Builder
	b.WriteString(chargeQuery)
	b.WriteString(clause)
	b.WriteString(" ORDER BY c.charge_date ASC, c.patient_id ASC")

	args := append([]any{s.store.PaidStatuses, q.Period.From, q.Period.EndExclusive()}, scopeArgs...)
	query, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build charge query").
			Mark(ierr.ErrSystem)
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()

	var rows []*billing.ChargeRow
	if err := s.store.DB.SelectContext(ctx, &rows, s.store.DB.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read charges from the billing database").
			WithReportableDetails(map[string]any{
				"wards":  q.WardIDs,
				"period": q.Period.String(),
			}).
			Mark(ierr.ErrDatabase)
	}

	for _, row := range rows {
		row.TaxCategory = billing.TaxCategoryFor(row.TaxCode)
	}
	return rows, nil
}

func (s *billingStore) ListPatientSummaries(ctx context.Context, q *billing.Query) ([]*billing.PatientSummary, error) {
	if q.IsEmpty() {
		return []*billing.PatientSummary{}, nil
	}

	clause, scopeArgs := scope(q)
	args := append([]any{s.store.PaidStatuses, q.Period.From, q.Period.EndExclusive()}, scopeArgs...)
	query, args, err := sqlx.In(chargeTotalsQuery+clause+" GROUP BY c.patient_id ORDER BY patient_name ASC", args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build summary query").
			Mark(ierr.ErrSystem)
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()

	var summaries []*billing.PatientSummary
	if err := s.store.DB.SelectContext(ctx, &summaries, s.store.DB.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read patient totals from the billing database").
			Mark(ierr.ErrDatabase)
	}
	if len(summaries) == 0 {
		return summaries, nil
	}

	patientIDs := lo.Map(summaries, func(ps *billing.PatientSummary, _ int) int64 { return ps.PatientID })
	query, args, err = sqlx.In(paymentTotalsQuery, s.store.PaidStatuses, q.Period.From, q.Period.EndExclusive(), patientIDs)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build payment query").
			Mark(ierr.ErrSystem)
	}

	var payments []paymentTotal
	if err := s.store.DB.SelectContext(ctx, &payments, s.store.DB.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read payments from the billing database").
			Mark(ierr.ErrDatabase)
	}

	paid := lo.SliceToMap(payments, func(p paymentTotal) (int64, decimal.Decimal) {
		return p.PatientID, p.Paid
	})
	for _, ps := range summaries {
		ps.PaymentsMade = paid[ps.PatientID]
		ps.Outstanding = ps.Subtotal.Add(ps.Tax).Sub(ps.PaymentsMade)
	}
	return summaries, nil
}
