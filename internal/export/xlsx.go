package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const fillsSheet = "FILLS"

// XLSXWriter writes fill reports as .xlsx workbooks into a directory.
type XLSXWriter struct {
	dir string
}

// NewXLSXWriter creates an XLSXWriter writing into dir.
func NewXLSXWriter(dir string) *XLSXWriter {
	return &XLSXWriter{dir: dir}
}

// Write renders the report into fills-YYYY-MM-DD.xlsx.
func (w *XLSXWriter) Write(_ context.Context, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(fillsSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	rows := buildFillRows(report)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("computing cell name: %w", err)
		}
		if err := f.SetSheetRow(fillsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("fills-%s.xlsx", report.Date.Format("2006-01-02")))
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// buildFillRows renders the report as sheet rows.
// Columns: Time | Sale | Token | Seller | Buyer | Tokens | Unit price | Paid | Closed
func buildFillRows(report Report) [][]any {
	data := make([][]any, 0, len(report.Rows)+len(report.Totals)+3)
	data = append(data, []any{
		"Time", "Sale", "Token", "Seller", "Buyer",
		"Tokens", "Unit price", "Paid", "Closed",
	})

	for _, row := range report.Rows {
		closed := 0
		if row.ClosedSale {
			closed = 1
		}
		data = append(data, []any{
			row.FilledAt.Format("2006-01-02 15:04:05"),
			row.SaleAddress.String(),
			row.TokenType.String(),
			row.Seller.String(),
			row.Buyer.String(),
			row.NumTokens,
			toFloat(row.UnitPrice),
			toFloat(row.AmountPaid),
			closed,
		})
	}

	data = append(data, []any{})
	for _, total := range report.Totals {
		data = append(data, []any{
			"TOTAL", "", total.TokenType.String(), "", "",
			total.Tokens, "", toFloat(total.Volume), total.Fills,
		})
	}
	data = append(data, []any{
		"VOLUME", "", "", "", "", "", "", toFloat(report.TotalVolume), report.ClosedSales,
	})

	return data
}
