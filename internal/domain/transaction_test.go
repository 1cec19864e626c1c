package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionTypeNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   TransactionType
		want TransactionType
	}{
		{name: "income stays income", in: TypeIncome, want: TypeIncome},
		{name: "expense stays expense", in: TypeExpense, want: TypeExpense},
		{name: "legacy credit becomes income", in: "credit", want: TypeIncome},
		{name: "legacy debit becomes expense", in: "debit", want: TypeExpense},
		{name: "unknown passes through", in: "transfer", want: "transfer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestTransactionTypeAliasesAreEquivalent(t *testing.T) {
	amount := decimal.NewFromInt(50)

	credit := Transaction{Amount: amount, Type: "credit"}
	income := Transaction{Amount: amount, Type: TypeIncome}
	assert.True(t, credit.BalanceEffect().Equal(income.BalanceEffect()))

	debit := Transaction{Amount: amount, Type: "debit"}
	expense := Transaction{Amount: amount, Type: TypeExpense}
	assert.True(t, debit.BalanceEffect().Equal(expense.BalanceEffect()))
}

func TestBalanceEffect(t *testing.T) {
	amount := decimal.NewFromFloat(12.5)

	in := Transaction{Amount: amount, Type: TypeIncome}
	assert.True(t, in.BalanceEffect().Equal(amount))

	out := Transaction{Amount: amount, Type: TypeExpense}
	assert.True(t, out.BalanceEffect().Equal(amount.Neg()))

	unknown := Transaction{Amount: amount, Type: "transfer"}
	assert.True(t, unknown.BalanceEffect().IsZero())
}

func TestTransactionTypeMarshalsCanonicalForm(t *testing.T) {
	data, err := json.Marshal(Transaction{ID: "1", Amount: decimal.NewFromInt(5), Type: "credit"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"income"`)
	assert.NotContains(t, string(data), "credit")
}

func TestTransactionAcceptsLegacySpellingOnRead(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","amount":20,"type":"debit"}`), &tx))
	assert.True(t, tx.Type.IsExpense())
	assert.True(t, tx.BalanceEffect().Equal(decimal.NewFromInt(-20)))
}

func TestDefaultDescription(t *testing.T) {
	assert.Equal(t, "Income", TypeIncome.DefaultDescription())
	assert.Equal(t, "Expense", TransactionType("debit").DefaultDescription())
	assert.Equal(t, "", TransactionType("transfer").DefaultDescription())
}

func TestTimestampSortsChronologically(t *testing.T) {
	earlier := Timestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	later := Timestamp(time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC))
	assert.Less(t, earlier, later)
}
