package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Derived summaries (never persisted)
// ============================================================

// CategoryTotal is one slice of the expense breakdown. Weight is the
// deterministic palette index derived from the sorted position, so the same
// category keeps the same chart color within a computation.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Weight   int             `json:"weight"`
}

// MonthlySummary aggregates one user's records for a calendar month.
type MonthlySummary struct {
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpense      decimal.Decimal `json:"total_expense"`
	Balance           decimal.Decimal `json:"balance"`
	CategoryBreakdown []CategoryTotal `json:"category_breakdown"`
}

// MonthlyPoint is one bucket of a yearly series. MonthIndex runs 0-11.
// Balance per bucket is intentionally left to the caller.
type MonthlyPoint struct {
	MonthIndex int             `json:"month_index"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
}

// Overview bundles the home-screen data: the current month plus the current
// year's series.
type Overview struct {
	Month *MonthlySummary `json:"month"`
	Year  []MonthlyPoint  `json:"year"`
}

// ============================================================
// Live subscription scopes
// ============================================================

// ScopeKind selects the time window a live subscription covers.
type ScopeKind string

const (
	ScopeCurrentMonth ScopeKind = "current_month"
	ScopeYear         ScopeKind = "year"
)

// Scope parameterizes a live subscription and its derived summary.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	Year int       `json:"year,omitempty"` // only meaningful for ScopeYear
}

// CurrentMonthScope selects the month containing "now" in the canonical zone.
func CurrentMonthScope() Scope { return Scope{Kind: ScopeCurrentMonth} }

// YearScope selects a full calendar year.
func YearScope(year int) Scope { return Scope{Kind: ScopeYear, Year: year} }

// Range resolves the scope to a concrete half-open window in loc.
// now is only consulted for ScopeCurrentMonth.
func (s Scope) Range(now time.Time, loc *time.Location) DateRange {
	switch s.Kind {
	case ScopeYear:
		start := time.Date(s.Year, time.January, 1, 0, 0, 0, 0, loc)
		return DateRange{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		local := now.In(loc)
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
	}
}

func (s Scope) String() string {
	if s.Kind == ScopeYear {
		return fmt.Sprintf("year:%d", s.Year)
	}
	return string(ScopeCurrentMonth)
}

// LiveSummary is what the live controller publishes to observers. Exactly
// one of Monthly/Yearly is set depending on the scope. Degraded marks a
// summary that was zeroed out because the subscription reported an error.
type LiveSummary struct {
	Scope    Scope           `json:"scope"`
	Seq      uint64          `json:"seq"`
	Monthly  *MonthlySummary `json:"monthly,omitempty"`
	Yearly   []MonthlyPoint  `json:"yearly,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
}
