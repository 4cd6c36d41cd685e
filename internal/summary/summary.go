// Package summary is the aggregation engine: pure, deterministic folds from
// transaction records into the monthly and yearly figures the app displays.
// No I/O happens here; all date bucketing is done in an explicit timezone
// passed by the caller, never the ambient system locale.
package summary

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/san2804/finguard-go/internal/domain"
)

// SummarizeMonth folds records into a monthly summary over the half-open
// window [start, end). A record stamped exactly at end belongs to the next
// month, so adjacent months never overlap.
//
// Income and expense totals are sums of magnitudes per kind. The category
// breakdown covers expenses only, grouped by exact (case-sensitive) category
// label, sorted descending by total; equal totals keep first-seen input
// order. Empty input yields zero totals and an empty breakdown.
func SummarizeMonth(records []domain.TransactionRecord, start, end time.Time) domain.MonthlySummary {
	window := domain.DateRange{Start: start, End: end}

	totalIncome := decimal.Zero
	totalExpense := decimal.Zero

	// first-seen order, required for the stable tie-break
	var order []string
	byCategory := make(map[string]decimal.Decimal)

	for _, rec := range records {
		if !window.Contains(rec.OccurredAt) {
			continue
		}
		switch rec.Kind {
		case domain.KindIncome:
			totalIncome = totalIncome.Add(rec.Amount)
		case domain.KindExpense:
			totalExpense = totalExpense.Add(rec.Amount)
			if _, seen := byCategory[rec.Category]; !seen {
				order = append(order, rec.Category)
			}
			byCategory[rec.Category] = byCategory[rec.Category].Add(rec.Amount)
		}
	}

	breakdown := make([]domain.CategoryTotal, 0, len(order))
	for _, cat := range order {
		breakdown = append(breakdown, domain.CategoryTotal{Category: cat, Total: byCategory[cat]})
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Total.GreaterThan(breakdown[j].Total)
	})
	assignWeights(breakdown)

	return domain.MonthlySummary{
		TotalIncome:       totalIncome,
		TotalExpense:      totalExpense,
		Balance:           totalIncome.Sub(totalExpense),
		CategoryBreakdown: breakdown,
	}
}

// SummarizeYear folds records into exactly 12 monthly buckets for the given
// calendar year. Bucketing uses the local calendar date of OccurredAt in
// loc: a record at 2024-12-31 23:00 UTC viewed from UTC+2 lands in January
// of the following local year and is therefore excluded from 2024. Months
// without records stay at zero; buckets are never omitted.
func SummarizeYear(records []domain.TransactionRecord, year int, loc *time.Location) []domain.MonthlyPoint {
	points := make([]domain.MonthlyPoint, 12)
	for i := range points {
		points[i] = domain.MonthlyPoint{MonthIndex: i, Income: decimal.Zero, Expense: decimal.Zero}
	}

	for _, rec := range records {
		local := rec.OccurredAt.In(loc)
		if local.Year() != year {
			continue
		}
		idx := int(local.Month()) - 1
		switch rec.Kind {
		case domain.KindIncome:
			points[idx].Income = points[idx].Income.Add(rec.Amount)
		case domain.KindExpense:
			points[idx].Expense = points[idx].Expense.Add(rec.Amount)
		}
	}

	return points
}

// MonthBounds returns the half-open window of the calendar month containing
// t, evaluated in loc.
func MonthBounds(t time.Time, loc *time.Location) (start, end time.Time) {
	local := t.In(loc)
	start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
