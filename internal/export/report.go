// Package export builds daily fill reports and writes them to configured
// destinations (xlsx workbook, Google Sheets).
package export

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// Row is one settled fill rendered for reporting.
type Row struct {
	FilledAt    time.Time
	SaleAddress domain.Address
	TokenType   domain.Address
	Seller      domain.Address
	Buyer       domain.Address
	NumTokens   uint64
	UnitPrice   decimal.Decimal
	AmountPaid  decimal.Decimal
	ClosedSale  bool
}

// MintTotal aggregates fills of one token type.
type MintTotal struct {
	TokenType domain.Address
	Fills     int
	Tokens    uint64
	Volume    decimal.Decimal
}

// Report is one day's settlement activity.
type Report struct {
	Date        time.Time
	Rows        []Row
	Totals      []MintTotal
	TotalVolume decimal.Decimal
	ClosedSales int
}

// Writer writes a report to some destination.
type Writer interface {
	Write(ctx context.Context, report Report) error
}

// BuildReport renders the day's fills into report rows with per-mint totals.
func BuildReport(date time.Time, fills []domain.Fill) Report {
	rows := lo.Map(fills, func(f domain.Fill, _ int) Row {
		return Row{
			FilledAt:    f.FilledAt,
			SaleAddress: f.SaleAddress,
			TokenType:   f.TokenType,
			Seller:      f.Seller,
			Buyer:       f.Buyer,
			NumTokens:   f.NumTokens,
			UnitPrice:   domain.DisplayUnits(f.UnitPrice),
			AmountPaid:  domain.DisplayUnits(f.AmountPaid),
			ClosedSale:  f.ClosedSale,
		}
	})

	byMint := lo.GroupBy(fills, func(f domain.Fill) domain.Address { return f.TokenType })
	totals := lo.MapToSlice(byMint, func(mint domain.Address, group []domain.Fill) MintTotal {
		return MintTotal{
			TokenType: mint,
			Fills:     len(group),
			Tokens: lo.SumBy(group, func(f domain.Fill) uint64 {
				return f.NumTokens
			}),
			Volume: lo.Reduce(group, func(acc decimal.Decimal, f domain.Fill, _ int) decimal.Decimal {
				return acc.Add(domain.DisplayUnits(f.AmountPaid))
			}, decimal.Zero),
		}
	})

	return Report{
		Date: date,
		Rows: rows,
		Totals: lo.Filter(totals, func(t MintTotal, _ int) bool {
			return t.Fills > 0
		}),
		TotalVolume: lo.Reduce(totals, func(acc decimal.Decimal, t MintTotal, _ int) decimal.Decimal {
			return acc.Add(t.Volume)
		}, decimal.Zero),
		ClosedSales: lo.CountBy(fills, func(f domain.Fill) bool { return f.ClosedSale }),
	}
}
