package billing

import (
	"time"

	"github.com/rxledger/statements/internal/types"
	"github.com/shopspring/decimal"
)

const (
	TaxCategoryExempt = "Exempt"
	TaxCategoryHST    = "HST"
	TaxCategoryOther  = "Other"
)

// TaxCategoryFor maps a billing system tax code to the label printed on statements
func TaxCategoryFor(code int) string {
	switch code {
	case 0:
		return TaxCategoryExempt
	case 4:
		return TaxCategoryHST
	default:
		return TaxCategoryOther
	}
}

// ChargeRow is one billable line from the billing data source
type ChargeRow struct {
	Date        time.Time `db:"charge_date" json:"date"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	// WardID is the billing system's ward code, empty for charges outside a ward
	WardID      string          `db:"ward_id" json:"ward_id"`
	Code        string          `db:"code" json:"code"`
	Description string          `db:"description" json:"description"`
	TaxCode     int             `db:"tax_code" json:"tax_code"`
	TaxCategory string          `db:"-" json:"tax_category"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
}

// PatientSummary aggregates one patient's activity over a period
type PatientSummary struct {
	PatientID    int64           `db:"patient_id" json:"patient_id"`
	PatientName  string          `db:"patient_name" json:"patient_name"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax          decimal.Decimal `db:"tax" json:"tax"`
	PaymentsMade decimal.Decimal `db:"payments_made" json:"payments_made"`
	Outstanding  decimal.Decimal `db:"outstanding" json:"outstanding"`
}

// Totals is the statement level sum of all patient summaries
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	PaymentsMade decimal.Decimal `json:"payments_made"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// Summarize sums the summary rows
func Summarize(rows []*PatientSummary) Totals {
	t := Totals{
		Subtotal:     decimal.Zero,
		Tax:          decimal.Zero,
		PaymentsMade: decimal.Zero,
		Outstanding:  decimal.Zero,
	}
	for _, r := range rows {
		t.Subtotal = t.Subtotal.Add(r.Subtotal)
		t.Tax = t.Tax.Add(r.Tax)
		t.PaymentsMade = t.PaymentsMade.Add(r.PaymentsMade)
		t.Outstanding = t.Outstanding.Add(r.Outstanding)
	}
	return t
}

// Query selects billing rows for either a set of wards or a single patient
type Query struct {
	WardIDs   []string
	PatientID *int64
	Period    types.Period
}

func (q *Query) IsEmpty() bool {
	return len(q.WardIDs) == 0 && q.PatientID == nil
}
