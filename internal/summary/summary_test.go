package summary_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/summary"
)

func rec(kind domain.Kind, amount, category string, occurredAt time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:         "rec-" + category + "-" + amount,
		UserID:     "user-1",
		Kind:       kind,
		Amount:     decimal.RequireFromString(amount),
		Category:   category,
		Account:    "Cash",
		OccurredAt: occurredAt,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestSummarizeMonth_Scenario(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	records := []domain.TransactionRecord{
		rec(domain.KindIncome, "1000", "Salary", date(2024, time.March, 5)),
		rec(domain.KindIncome, "500", "Salary", date(2024, time.March, 20)),
		rec(domain.KindExpense, "300", "Food", date(2024, time.March, 10)),
		rec(domain.KindExpense, "300", "Food", date(2024, time.March, 15)),
		rec(domain.KindExpense, "100", "Travel", date(2024, time.March, 1)),
	}

	got := summary.SummarizeMonth(records, start, end)

	if !got.TotalIncome.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("total income = %s, want 1500", got.TotalIncome)
	}
	if !got.TotalExpense.Equal(decimal.NewFromInt(700)) {
		t.Errorf("total expense = %s, want 700", got.TotalExpense)
	}
	if !got.Balance.Equal(decimal.NewFromInt(800)) {
		t.Errorf("balance = %s, want 800", got.Balance)
	}

	if len(got.CategoryBreakdown) != 2 {
		t.Fatalf("breakdown has %d entries, want 2", len(got.CategoryBreakdown))
	}
	if got.CategoryBreakdown[0].Category != "Food" || !got.CategoryBreakdown[0].Total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("breakdown[0] = %s/%s, want Food/600",
			got.CategoryBreakdown[0].Category, got.CategoryBreakdown[0].Total)
	}
	if got.CategoryBreakdown[1].Category != "Travel" || !got.CategoryBreakdown[1].Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("breakdown[1] = %s/%s, want Travel/100",
			got.CategoryBreakdown[1].Category, got.CategoryBreakdown[1].Total)
	}
}

func TestSummarizeMonth_Empty(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	got := summary.SummarizeMonth(nil, start, start.AddDate(0, 1, 0))

	if !got.TotalIncome.IsZero() || !got.TotalExpense.IsZero() || !got.Balance.IsZero() {
		t.Errorf("expected all-zero totals, got income=%s expense=%s balance=%s",
			got.TotalIncome, got.TotalExpense, got.Balance)
	}
	if len(got.CategoryBreakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d entries", len(got.CategoryBreakdown))
	}
}

func TestSummarizeMonth_BalanceInvariant(t *testing.T) {
	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	records := []domain.TransactionRecord{
		rec(domain.KindIncome, "0.10", "Salary", date(2024, time.June, 1)),
		rec(domain.KindIncome, "0.10", "Salary", date(2024, time.June, 2)),
		rec(domain.KindIncome, "0.10", "Salary", date(2024, time.June, 3)),
		rec(domain.KindExpense, "0.30", "Food", date(2024, time.June, 4)),
	}

	got := summary.SummarizeMonth(records, start, end)

	if got.TotalIncome.IsNegative() || got.TotalExpense.IsNegative() {
		t.Errorf("totals must be non-negative: income=%s expense=%s", got.TotalIncome, got.TotalExpense)
	}
	// 0.1+0.1+0.1 must equal 0.3 exactly, no binary float drift
	if !got.TotalIncome.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("income = %s, want exactly 0.3", got.TotalIncome)
	}
	if !got.Balance.Equal(got.TotalIncome.Sub(got.TotalExpense)) {
		t.Errorf("balance = %s, want income-expense = %s", got.Balance, got.TotalIncome.Sub(got.TotalExpense))
	}
	if !got.Balance.IsZero() {
		t.Errorf("balance = %s, want exactly 0", got.Balance)
	}
}

func TestSummarizeMonth_HalfOpenBoundary(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0) // 2024-04-01T00:00:00Z

	records := []domain.TransactionRecord{
		rec(domain.KindExpense, "10", "Food", start),              // first instant: in
		rec(domain.KindExpense, "20", "Food", end.Add(-time.Nanosecond)), // last instant: in
		rec(domain.KindExpense, "40", "Food", end),                // first instant of April: out
	}

	got := summary.SummarizeMonth(records, start, end)
	if !got.TotalExpense.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expense = %s, want 30 (record at monthEnd must be excluded)", got.TotalExpense)
	}

	next := summary.SummarizeMonth(records, end, end.AddDate(0, 1, 0))
	if !next.TotalExpense.Equal(decimal.NewFromInt(40)) {
		t.Errorf("next month expense = %s, want 40 (record at monthEnd belongs to next month)", next.TotalExpense)
	}
}

func TestSummarizeMonth_TieKeepsFirstSeenOrder(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	records := []domain.TransactionRecord{
		rec(domain.KindExpense, "50", "Travel", date(2024, time.March, 2)),
		rec(domain.KindExpense, "50", "Food", date(2024, time.March, 3)),
		rec(domain.KindExpense, "120", "Bills", date(2024, time.March, 4)),
	}

	got := summary.SummarizeMonth(records, start, end)

	want := []string{"Bills", "Travel", "Food"}
	if len(got.CategoryBreakdown) != len(want) {
		t.Fatalf("breakdown has %d entries, want %d", len(got.CategoryBreakdown), len(want))
	}
	for i, cat := range want {
		if got.CategoryBreakdown[i].Category != cat {
			t.Errorf("breakdown[%d] = %s, want %s", i, got.CategoryBreakdown[i].Category, cat)
		}
	}
}

func TestSummarizeMonth_WeightsFollowSortedPosition(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	records := []domain.TransactionRecord{
		rec(domain.KindExpense, "10", "Food", date(2024, time.March, 2)),
		rec(domain.KindExpense, "30", "Bills", date(2024, time.March, 3)),
		rec(domain.KindExpense, "20", "Travel", date(2024, time.March, 4)),
	}

	first := summary.SummarizeMonth(records, start, end)
	second := summary.SummarizeMonth(records, start, end)

	for i := range first.CategoryBreakdown {
		if first.CategoryBreakdown[i].Weight != i {
			t.Errorf("breakdown[%d].Weight = %d, want %d", i, first.CategoryBreakdown[i].Weight, i)
		}
		if first.CategoryBreakdown[i].Weight != second.CategoryBreakdown[i].Weight ||
			first.CategoryBreakdown[i].Category != second.CategoryBreakdown[i].Category {
			t.Errorf("weight assignment not deterministic at position %d", i)
		}
	}
}

func TestSummarizeMonth_CategoriesAreCaseSensitive(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	records := []domain.TransactionRecord{
		rec(domain.KindExpense, "10", "food", date(2024, time.March, 2)),
		rec(domain.KindExpense, "10", "Food", date(2024, time.March, 3)),
	}

	got := summary.SummarizeMonth(records, start, end)
	if len(got.CategoryBreakdown) != 2 {
		t.Errorf("expected 'food' and 'Food' to stay separate, got %d entries", len(got.CategoryBreakdown))
	}
}

func TestSummarizeYear_AlwaysTwelveBuckets(t *testing.T) {
	records := []domain.TransactionRecord{
		rec(domain.KindIncome, "1000", "Salary", date(2024, time.February, 15)),
		rec(domain.KindExpense, "200", "Food", date(2024, time.November, 3)),
		rec(domain.KindExpense, "999", "Food", date(2023, time.November, 3)), // other year
	}

	got := summary.SummarizeYear(records, 2024, time.UTC)

	if len(got) != 12 {
		t.Fatalf("got %d buckets, want 12", len(got))
	}
	for i, p := range got {
		if p.MonthIndex != i {
			t.Errorf("bucket %d has MonthIndex %d", i, p.MonthIndex)
		}
	}
	if !got[1].Income.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("February income = %s, want 1000", got[1].Income)
	}
	if !got[10].Expense.Equal(decimal.NewFromInt(200)) {
		t.Errorf("November expense = %s, want 200", got[10].Expense)
	}
	for i, p := range got {
		if i == 1 || i == 10 {
			continue
		}
		if !p.Income.IsZero() || !p.Expense.IsZero() {
			t.Errorf("bucket %d should be zero, got income=%s expense=%s", i, p.Income, p.Expense)
		}
	}
}

func TestSummarizeYear_SparseInputKeepsZeroBuckets(t *testing.T) {
	got := summary.SummarizeYear(nil, 2024, time.UTC)
	if len(got) != 12 {
		t.Fatalf("got %d buckets, want 12", len(got))
	}
	for i, p := range got {
		if !p.Income.IsZero() || !p.Expense.IsZero() {
			t.Errorf("bucket %d not zero", i)
		}
	}
}

// A record near midnight on New Year's Eve buckets by its local calendar
// date in the configured zone, not by UTC.
func TestSummarizeYear_LocalCalendarYearRule(t *testing.T) {
	colombo := time.FixedZone("Asia/Colombo", int((5*time.Hour + 30*time.Minute).Seconds()))

	// 2024-12-31 22:00 UTC == 2025-01-01 03:30 in Colombo.
	boundary := time.Date(2024, time.December, 31, 22, 0, 0, 0, time.UTC)
	records := []domain.TransactionRecord{
		rec(domain.KindExpense, "100", "Party", boundary),
	}

	utc2024 := summary.SummarizeYear(records, 2024, time.UTC)
	if !utc2024[11].Expense.Equal(decimal.NewFromInt(100)) {
		t.Errorf("in UTC the record belongs to December 2024, got %s", utc2024[11].Expense)
	}

	local2024 := summary.SummarizeYear(records, 2024, colombo)
	for i, p := range local2024 {
		if !p.Expense.IsZero() {
			t.Errorf("in Colombo the record is in 2025, but 2024 bucket %d = %s", i, p.Expense)
		}
	}
	local2025 := summary.SummarizeYear(records, 2025, colombo)
	if !local2025[0].Expense.Equal(decimal.NewFromInt(100)) {
		t.Errorf("in Colombo the record belongs to January 2025, got %s", local2025[0].Expense)
	}
}

func TestMonthBounds(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, time.March, 17, 9, 30, 0, 0, loc)

	start, end := summary.MonthBounds(now, loc)

	wantStart := time.Date(2024, time.March, 1, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2024, time.April, 1, 0, 0, 0, 0, loc)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("bounds = [%s, %s), want [%s, %s)", start, end, wantStart, wantEnd)
	}

	// December rolls over into January of the next year.
	start, end = summary.MonthBounds(time.Date(2024, time.December, 31, 23, 59, 0, 0, loc), loc)
	if end.Year() != 2025 || end.Month() != time.January {
		t.Errorf("December end = %s, want 2025-01-01", end)
	}
	if start.Month() != time.December {
		t.Errorf("December start = %s", start)
	}
}
