package budgets

import "time"

// Kind splits budget items into money going out and money coming in.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

func ValidKind(value string) bool {
	switch Kind(value) {
	case KindExpense, KindIncome:
		return true
	default:
		return false
	}
}

// Item is a single planned or actual budget line for an event. Amounts are
// integer cents to keep arithmetic exact.
type Item struct {
	ID           string
	ULID         string
	EventULID    string
	Kind         Kind
	Category     string
	Description  string
	PlannedCents int64
	ActualCents  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ItemParams struct {
	ULID         string
	EventULID    string
	Kind         Kind
	Category     string
	Description  string
	PlannedCents int64
	ActualCents  int64
}

// CategoryTotal aggregates one category within a kind.
type CategoryTotal struct {
	Category     string `json:"category"`
	PlannedCents int64  `json:"planned_cents"`
	ActualCents  int64  `json:"actual_cents"`
}

// Summary rolls up an event's budget. Variance is actual minus planned for
// expenses; sponsor income counts approved sponsorship pledges alongside
// income line items.
type Summary struct {
	EventULID           string          `json:"event_id"`
	PlannedExpenseCents int64           `json:"planned_expense_cents"`
	ActualExpenseCents  int64           `json:"actual_expense_cents"`
	PlannedIncomeCents  int64           `json:"planned_income_cents"`
	ActualIncomeCents   int64           `json:"actual_income_cents"`
	SponsorIncomeCents  int64           `json:"sponsor_income_cents"`
	ExpenseVariance     int64           `json:"expense_variance_cents"`
	NetCents            int64           `json:"net_cents"`
	Expenses            []CategoryTotal `json:"expenses"`
	Income              []CategoryTotal `json:"income"`
}
