package domain

import (
	"github.com/shopspring/decimal"
)

// Customer is one ledger party. Balance is a denormalized running total of
// the signed effects of all transactions linked to this customer: positive
// means the customer owes money in, negative means money is owed out. It is
// maintained by the record store on every linked-transaction mutation.
type Customer struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Number    string          `json:"number,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

// Stats is the aggregate summary recomputed by full scan on demand.
// TotalIncome and TotalExpenses sum over all transactions, linked and
// unlinked alike; TotalCustomerBalance sums the per-customer running
// balances. The two totals are independent numbers.
type Stats struct {
	TotalIncome          decimal.Decimal `json:"totalIncome"`
	TotalExpenses        decimal.Decimal `json:"totalExpenses"`
	TotalBalance         decimal.Decimal `json:"totalBalance"`
	TotalCustomerBalance decimal.Decimal `json:"totalCustomerBalance"`
	TotalCustomers       int             `json:"totalCustomers"`
	TotalTransactions    int             `json:"totalTransactions"`
}
