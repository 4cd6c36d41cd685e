package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes income from expense records.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// TransactionRecord is one income or expense event. Records are immutable
// once created; the amount is always a positive magnitude and the sign shown
// to users is derived from Kind at the presentation edge, never stored.
type TransactionRecord struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Account       string          `json:"account"`
	Note          string          `json:"note,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AttachmentURL string          `json:"attachment_url,omitempty"`
}

// SignedAmount returns the display amount: negative for expenses.
func (t *TransactionRecord) SignedAmount() decimal.Decimal {
	if t.Kind == KindExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// TransactionDraft is the user-supplied input for a new record. Amount is
// kept as raw text because it comes straight from a form field; ParseAmount
// turns it into a validated magnitude.
type TransactionDraft struct {
	Kind                  Kind
	Amount                string
	Category              string
	Account               string
	Note                  string
	OccurredAt            time.Time
	Attachment            []byte
	AttachmentContentType string
}

// ParseAmount parses a user-entered amount into a positive decimal magnitude.
// Both "12.34" and "12,34" are accepted. Zero, negative and malformed input
// are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "not a valid number"}
	}
	if !d.IsPositive() {
		return decimal.Zero, &ErrValidation{Field: "amount", Message: "must be positive"}
	}
	return d, nil
}

// DateRange is a half-open time window [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the half-open window.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
