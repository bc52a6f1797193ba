package workbook

import (
	"time"

	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/types"
)

// StatementData is everything printed on one rendered statement
type StatementData struct {
	Target      types.Target
	Period      types.Period
	GeneratedAt time.Time

	From      config.BusinessInfo
	Recipient RecipientInfo

	Charges   []*billing.ChargeRow
	Summaries []*billing.PatientSummary
	Totals    billing.Totals
}

// RecipientInfo is the billed organization or patient
type RecipientInfo struct {
	Name  string
	Email string
	// Wards lists the ward names covered by an organization statement
	Wards []string
}
