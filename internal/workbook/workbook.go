package workbook

import (
	"context"
	"strings"

	"github.com/rxledger/statements/internal/domain/billing"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetStatement = "Statement"
	SheetSummary   = "Patient Summary"
	SheetCharges   = "Charges"

	// numFmtAmount is the built-in "0.00" number format
	numFmtAmount = 2
)

var (
	summaryHeader = []interface{}{"Patient ID", "Patient", "Subtotal", "Tax", "Payments Made", "Outstanding"}
	chargeHeader  = []interface{}{"Date", "Patient ID", "Patient", "Ward", "Code", "Description", "Tax", "Amount"}
)

// Renderer turns statement data into a spreadsheet document
type Renderer interface {
	RenderStatement(ctx context.Context, data *StatementData) ([]byte, error)
}

type renderer struct {
	logger *logger.Logger
}

func NewRenderer(logger *logger.Logger) Renderer {
	return &renderer{logger: logger}
}

type styles struct {
	bold   int
	amount int
	total  int
}

func (r *renderer) RenderStatement(ctx context.Context, data *StatementData) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warnw("failed to close workbook", "error", err)
		}
	}()

	st, err := newStyles(f)
	if err != nil {
		return nil, renderErr(err, data)
	}

	if err := f.SetSheetName("Sheet1", SheetStatement); err != nil {
		return nil, renderErr(err, data)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, renderErr(err, data)
	}
	if _, err := f.NewSheet(SheetCharges); err != nil {
		return nil, renderErr(err, data)
	}

	if err := writeStatementSheet(f, st, data); err != nil {
		return nil, renderErr(err, data)
	}
	if err := writeSummarySheet(f, st, data); err != nil {
		return nil, renderErr(err, data)
	}
	if err := writeChargeSheet(f, st, data); err != nil {
		return nil, renderErr(err, data)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, renderErr(err, data)
	}
	return buf.Bytes(), nil
}

func newStyles(f *excelize.File) (*styles, error) {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return nil, err
	}
	total, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	return &styles{bold: bold, amount: amount, total: total}, nil
}

func writeStatementSheet(f *excelize.File, st *styles, data *StatementData) error {
	from := data.From
	rows := [][]interface{}{
		{from.Name},
		{from.Address},
		{strings.TrimSpace(strings.Join([]string{from.City, from.Province, from.Postal}, " "))},
		{"Phone", from.Phone},
		{"Fax", from.Fax},
		{"Email", from.Email},
		{"Tax Number", from.TaxNumber},
		{},
		{"Bill To", data.Recipient.Name},
		{"Period", data.Period.String()},
		{"Generated", data.GeneratedAt.Format("2006-01-02 15:04")},
	}
	if len(data.Recipient.Wards) > 0 {
		rows = append(rows, []interface{}{"Wards", strings.Join(data.Recipient.Wards, ", ")})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Subtotal", amount(data.Totals.Subtotal)},
		[]interface{}{"Tax", amount(data.Totals.Tax)},
		[]interface{}{"Payments Made", amount(data.Totals.PaymentsMade)},
		[]interface{}{"Outstanding", amount(data.Totals.Outstanding)},
	)

	if err := setRows(f, SheetStatement, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetStatement, "A1", "A1", st.bold); err != nil {
		return err
	}

	totalsStart := len(rows) - 3
	first, _ := excelize.CoordinatesToCellName(2, totalsStart)
	last, _ := excelize.CoordinatesToCellName(2, len(rows))
	if err := f.SetCellStyle(SheetStatement, first, last, st.amount); err != nil {
		return err
	}
	outstanding, _ := excelize.CoordinatesToCellName(2, len(rows))
	if err := f.SetCellStyle(SheetStatement, outstanding, outstanding, st.total); err != nil {
		return err
	}
	return f.SetColWidth(SheetStatement, "A", "B", 24)
}

func writeSummarySheet(f *excelize.File, st *styles, data *StatementData) error {
	rows := make([][]interface{}, 0, len(data.Summaries)+2)
	rows = append(rows, summaryHeader)
	for _, s := range data.Summaries {
		rows = append(rows, []interface{}{
			s.PatientID,
			s.PatientName,
			amount(s.Subtotal),
			amount(s.Tax),
			amount(s.PaymentsMade),
			amount(s.Outstanding),
		})
	}
	rows = append(rows, []interface{}{
		"", "Total",
		amount(data.Totals.Subtotal),
		amount(data.Totals.Tax),
		amount(data.Totals.PaymentsMade),
		amount(data.Totals.Outstanding),
	})

	if err := setRows(f, SheetSummary, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "F1", st.bold); err != nil {
		return err
	}
	if len(rows) > 2 {
		last, _ := excelize.CoordinatesToCellName(6, len(rows)-1)
		if err := f.SetCellStyle(SheetSummary, "C2", last, st.amount); err != nil {
			return err
		}
	}
	totalFirst, _ := excelize.CoordinatesToCellName(3, len(rows))
	totalLast, _ := excelize.CoordinatesToCellName(6, len(rows))
	if err := f.SetCellStyle(SheetSummary, totalFirst, totalLast, st.total); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "B", "B", 28)
}

func writeChargeSheet(f *excelize.File, st *styles, data *StatementData) error {
	rows := make([][]interface{}, 0, len(data.Charges)+1)
	rows = append(rows, chargeHeader)
	for _, c := range data.Charges {
		category := c.TaxCategory
		if category == "" {
			category = billing.TaxCategoryFor(c.TaxCode)
		}
		rows = append(rows, []interface{}{
			c.Date.Format("2006-01-02"),
			c.PatientID,
			c.PatientName,
			c.WardID,
			c.Code,
			c.Description,
			category,
			amount(c.Amount),
		})
	}

	if err := setRows(f, SheetCharges, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetCharges, "A1", "H1", st.bold); err != nil {
		return err
	}
	if len(rows) > 1 {
		last, _ := excelize.CoordinatesToCellName(8, len(rows))
		if err := f.SetCellStyle(SheetCharges, "H2", last, st.amount); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetCharges, "F", "F", 40)
}

func setRows(f *excelize.File, sheet string, startRow int, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, startRow+i)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func renderErr(err error, data *StatementData) error {
	return ierr.WithError(err).
		WithHint("Failed to render statement workbook").
		WithReportableDetails(map[string]interface{}{
			"target": data.Target.String(),
			"period": data.Period.String(),
		}).
		Mark(ierr.ErrSystem)
}
