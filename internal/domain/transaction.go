package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction as money in or money out.
// The canonical values are "income" and "expense"; older records use
// "credit" and "debit" for the same two meanings, so every consumer must
// treat the pairs as equivalent. Normalize collapses the legacy spellings;
// the canonical form is always written at the persistence boundary.
type TransactionType string

const (
	// TypeIncome is money coming in (legacy spelling: "credit").
	TypeIncome TransactionType = "income"
	// TypeExpense is money going out (legacy spelling: "debit").
	TypeExpense TransactionType = "expense"

	typeCredit TransactionType = "credit"
	typeDebit  TransactionType = "debit"
)

// Normalize maps legacy spellings onto the canonical pair. Unknown values
// pass through unchanged; they carry no balance effect.
func (t TransactionType) Normalize() TransactionType {
	switch t {
	case typeCredit:
		return TypeIncome
	case typeDebit:
		return TypeExpense
	default:
		return t
	}
}

// IsIncome reports whether t is income under either spelling.
func (t TransactionType) IsIncome() bool { return t.Normalize() == TypeIncome }

// IsExpense reports whether t is expense under either spelling.
func (t TransactionType) IsExpense() bool { return t.Normalize() == TypeExpense }

// Valid reports whether t is one of the four accepted spellings.
func (t TransactionType) Valid() bool {
	n := t.Normalize()
	return n == TypeIncome || n == TypeExpense
}

// DefaultDescription returns the label used when a transaction is created
// without a description.
func (t TransactionType) DefaultDescription() string {
	switch t.Normalize() {
	case TypeIncome:
		return "Income"
	case TypeExpense:
		return "Expense"
	default:
		return ""
	}
}

// MarshalJSON always writes the canonical spelling.
func (t TransactionType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + string(t.Normalize()) + `"`), nil
}

// Transaction is one cash-in or cash-out entry. Amount is an unsigned
// magnitude; the sign is carried by Type. CustomerID is empty for general
// transactions not linked to a customer. CustomerName is a denormalized copy
// of the customer's name at creation time and is not kept in sync with later
// renames.
type Transaction struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         TransactionType `json:"type"`
	Description  string          `json:"description,omitempty"`
	CustomerID   string          `json:"customerId,omitempty"`
	CustomerName string          `json:"customerName,omitempty"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// BalanceEffect is the signed contribution of this transaction to its linked
// customer's balance: +Amount for income/credit, -Amount for expense/debit,
// zero for unrecognized types.
func (t Transaction) BalanceEffect() decimal.Decimal {
	switch {
	case t.Type.IsIncome():
		return t.Amount
	case t.Type.IsExpense():
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// TimeLayout is the ISO-8601 form timestamps are stored in. It matches the
// wire format of existing records (millisecond precision, UTC "Z" suffix)
// and sorts chronologically as a plain string.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in the stored timestamp form.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
