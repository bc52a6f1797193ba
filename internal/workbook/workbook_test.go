package workbook

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/domain/billing"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleData() *StatementData {
	period := types.NewPeriod(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	)
	summaries := []*billing.PatientSummary{
		{PatientID: 10, PatientName: "Doe, Jane", Subtotal: decimal.RequireFromString("40.00"), Tax: decimal.RequireFromString("5.20"), PaymentsMade: decimal.Zero, Outstanding: decimal.RequireFromString("45.20")},
		{PatientID: 11, PatientName: "Roe, Rick", Subtotal: decimal.RequireFromString("12.50"), Tax: decimal.Zero, PaymentsMade: decimal.RequireFromString("12.50"), Outstanding: decimal.Zero},
	}
	return &StatementData{
		Target:      types.OrganizationTarget(7),
		Period:      period,
		GeneratedAt: time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC),
		From:        config.BusinessInfo{Name: "Main Street Pharmacy", City: "Hamilton", Province: "ON"},
		Recipient:   RecipientInfo{Name: "Maple Lodge", Wards: []string{"A"}},
		Charges: []*billing.ChargeRow{
			{Date: period.From, PatientID: 10, PatientName: "Doe, Jane", WardID: "A", Code: "RX1", Description: "Amoxicillin", TaxCode: 0, Amount: decimal.RequireFromString("40.00")},
			{Date: period.To, PatientID: 11, PatientName: "Roe, Rick", WardID: "A", Code: "OTC2", Description: "Bandages", TaxCode: 4, TaxCategory: billing.TaxCategoryHST, Amount: decimal.RequireFromString("12.50")},
		},
		Summaries: summaries,
		Totals:    billing.Summarize(summaries),
	}
}

func render(t *testing.T, data *StatementData) *excelize.File {
	t.Helper()
	out, err := NewRenderer(logger.NewNopLogger()).RenderStatement(context.Background(), data)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRenderStatementSheets(t *testing.T) {
	f := render(t, sampleData())
	assert.Equal(t, []string{SheetStatement, SheetSummary, SheetCharges}, f.GetSheetList())
}

func TestRenderStatementCharges(t *testing.T) {
	f := render(t, sampleData())

	rows, err := f.GetRows(SheetCharges)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "2024-03-01", rows[1][0])
	assert.Equal(t, "Amoxicillin", rows[1][5])
	assert.Equal(t, billing.TaxCategoryExempt, rows[1][6])
	assert.Equal(t, billing.TaxCategoryHST, rows[2][6])
}

func TestRenderStatementSummaryTotals(t *testing.T) {
	f := render(t, sampleData())

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Total", rows[3][1])
	assert.Equal(t, "52.50", rows[3][2])
	assert.Equal(t, "45.20", rows[3][5])
}

func TestRenderStatementHeader(t *testing.T) {
	f := render(t, sampleData())

	name, err := f.GetCellValue(SheetStatement, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Main Street Pharmacy", name)

	rows, err := f.GetRows(SheetStatement)
	require.NoError(t, err)
	found := false
	for _, row := range rows {
		if len(row) == 2 && row[0] == "Period" {
			assert.Equal(t, "2024-03-01 - 2024-03-31", row[1])
			found = true
		}
	}
	assert.True(t, found, "period row missing")
}

func TestRenderStatementEmpty(t *testing.T) {
	data := sampleData()
	data.Charges = nil
	data.Summaries = nil
	data.Totals = billing.Summarize(nil)

	f := render(t, data)

	rows, err := f.GetRows(SheetCharges)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
