package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var _ billing.Store = (*InMemoryBillingStore)(nil)

// InMemoryBillingStore serves seeded charge and payment rows. Only charges
// marked paid are billable, like the real source.
type InMemoryBillingStore struct {
	mu       sync.RWMutex
	charges  []*BillingCharge
	payments []*BillingPayment
	err      error
}

// BillingCharge is a seeded charge row with its payment state
type BillingCharge struct {
	billing.ChargeRow
	Tax  decimal.Decimal
	Paid bool
}

// BillingPayment is a seeded payment inside the queried period
type BillingPayment struct {
	PatientID int64
	Amount    decimal.Decimal
}

func NewInMemoryBillingStore() *InMemoryBillingStore {
	return &InMemoryBillingStore{}
}

// AddCharge seeds a paid charge
func (s *InMemoryBillingStore) AddCharge(row billing.ChargeRow, tax decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = append(s.charges, &BillingCharge{ChargeRow: row, Tax: tax, Paid: true})
}

// AddUnpaidCharge seeds a charge whose payment is not paid or posted
func (s *InMemoryBillingStore) AddUnpaidCharge(row billing.ChargeRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = append(s.charges, &BillingCharge{ChargeRow: row, Tax: decimal.Zero})
}

// AddPayment seeds a payment counted in patient summaries
func (s *InMemoryBillingStore) AddPayment(p *BillingPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
}

// FailWith makes every query return err
func (s *InMemoryBillingStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *InMemoryBillingStore) matching(q *billing.Query) []*BillingCharge {
	return lo.Filter(s.charges, func(c *BillingCharge, _ int) bool {
		if !c.Paid || !q.Period.Overlaps(c.Date, c.Date) {
			return false
		}
		if len(q.WardIDs) > 0 {
			return lo.Contains(q.WardIDs, c.WardID)
		}
		return q.PatientID != nil && c.PatientID == *q.PatientID
	})
}

func (s *InMemoryBillingStore) ListCharges(ctx context.Context, q *billing.Query) ([]*billing.ChargeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	if q.IsEmpty() {
		return []*billing.ChargeRow{}, nil
	}

	rows := lo.Map(s.matching(q), func(c *BillingCharge, _ int) *billing.ChargeRow {
		row := c.ChargeRow
		row.TaxCategory = billing.TaxCategoryFor(row.TaxCode)
		return &row
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date.Equal(rows[j].Date) {
			return rows[i].PatientID < rows[j].PatientID
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows, nil
}

func (s *InMemoryBillingStore) ListPatientSummaries(ctx context.Context, q *billing.Query) ([]*billing.PatientSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	if q.IsEmpty() {
		return []*billing.PatientSummary{}, nil
	}

	byPatient := make(map[int64]*billing.PatientSummary)
	for _, c := range s.matching(q) {
		ps, ok := byPatient[c.PatientID]
		if !ok {
			ps = &billing.PatientSummary{
				PatientID:    c.PatientID,
				PatientName:  c.PatientName,
				Subtotal:     decimal.Zero,
				Tax:          decimal.Zero,
				PaymentsMade: decimal.Zero,
			}
			byPatient[c.PatientID] = ps
		}
		ps.Subtotal = ps.Subtotal.Add(c.Amount)
		ps.Tax = ps.Tax.Add(c.Tax)
	}
	for _, p := range s.payments {
		if ps, ok := byPatient[p.PatientID]; ok {
			ps.PaymentsMade = ps.PaymentsMade.Add(p.Amount)
		}
	}

	summaries := lo.Values(byPatient)
	for _, ps := range summaries {
		ps.Outstanding = ps.Subtotal.Add(ps.Tax).Sub(ps.PaymentsMade)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].PatientName < summaries[j].PatientName })
	return summaries, nil
}

func (s *InMemoryBillingStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = nil
	s.payments = nil
	s.err = nil
}
