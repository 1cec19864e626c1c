package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerbook/internal/domain"
)

var (
	// ErrInvalidType is returned when a transaction carries a type outside
	// the accepted income/expense (credit/debit) set.
	ErrInvalidType = errors.New("store: invalid transaction type")
	// ErrNegativeAmount is returned when a transaction amount is negative;
	// amounts are unsigned magnitudes, direction comes from the type.
	ErrNegativeAmount = errors.New("store: amount must not be negative")
)

// TransactionInput carries the caller-supplied fields for a new transaction.
// CustomerID is optional; empty means a general, unlinked transaction.
type TransactionInput struct {
	Amount      decimal.Decimal
	Type        domain.TransactionType
	Description string
	CustomerID  string
}

// TransactionUpdate carries a partial transaction edit; nil fields are
// untouched. Setting CustomerID relinks the transaction to another customer;
// ClearCustomer unlinks it entirely.
type TransactionUpdate struct {
	Amount        *decimal.Decimal
	Type          *domain.TransactionType
	Description   *string
	CustomerID    *string
	ClearCustomer bool
}

// ListTransactions returns all transactions for the current identity,
// newest first. It never fails; read errors yield an empty slice.
func (s *Store) ListTransactions(ctx context.Context) []domain.Transaction {
	return s.loadTransactions(ctx)
}

// CustomerTransactions returns the transactions linked to one customer,
// newest first.
func (s *Store) CustomerTransactions(ctx context.Context, customerID string) []domain.Transaction {
	all := s.loadTransactions(ctx)
	linked := make([]domain.Transaction, 0)
	for _, t := range all {
		if t.CustomerID == customerID {
			linked = append(linked, t)
		}
	}
	return linked
}

// AddTransaction creates a transaction and, when it is linked to a customer,
// applies its balance effect to that customer. Transaction and customer
// writes land as one commit, so a crash cannot record the transaction
// without its balance adjustment.
func (s *Store) AddTransaction(ctx context.Context, input TransactionInput) (domain.Transaction, error) {
	if !input.Type.Valid() {
		return domain.Transaction{}, ErrInvalidType
	}
	if input.Amount.IsNegative() {
		return domain.Transaction{}, ErrNegativeAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	transaction := domain.Transaction{
		ID:          s.newID(now),
		Amount:      input.Amount,
		Type:        input.Type.Normalize(),
		Description: input.Description,
		CustomerID:  input.CustomerID,
		CreatedAt:   domain.Timestamp(now),
	}
	if transaction.Description == "" {
		transaction.Description = transaction.Type.DefaultDescription()
	}

	var customers []domain.Customer
	if transaction.CustomerID != "" {
		customers = s.loadCustomers(ctx)
		idx := findCustomer(customers, transaction.CustomerID)
		if idx >= 0 {
			transaction.CustomerName = customers[idx].Name
			applyBalance(&customers[idx], transaction.BalanceEffect(), transaction.CreatedAt)
		} else {
			// Dangling link: keep the transaction, touch no balance.
			customers = nil
		}
	}

	// Newest first; createdAt is the natural sort key.
	transactions := append([]domain.Transaction{transaction}, s.loadTransactions(ctx)...)

	if err := s.commit(ctx, customers, transactions); err != nil {
		return domain.Transaction{}, err
	}
	return transaction, nil
}

// UpdateTransaction merges the given fields into an existing transaction.
// The old transaction's balance effect is reversed on its old customer, then
// the merged transaction's effect is applied to its (possibly different) new
// customer. Exactly one reversal and one application per update.
func (s *Store) UpdateTransaction(ctx context.Context, id string, update TransactionUpdate) (domain.Transaction, error) {
	if update.Amount != nil && update.Amount.IsNegative() {
		return domain.Transaction{}, ErrNegativeAmount
	}
	if update.Type != nil && !update.Type.Valid() {
		return domain.Transaction{}, ErrInvalidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	transactions := s.loadTransactions(ctx)
	idx := findTransaction(transactions, id)
	if idx < 0 {
		return domain.Transaction{}, ErrNotFound
	}
	old := transactions[idx]

	customers := s.loadCustomers(ctx)
	ts := domain.Timestamp(s.now())

	if old.CustomerID != "" {
		if i := findCustomer(customers, old.CustomerID); i >= 0 {
			applyBalance(&customers[i], old.BalanceEffect().Neg(), ts)
		}
	}

	next := old
	if update.Amount != nil {
		next.Amount = *update.Amount
	}
	if update.Type != nil {
		next.Type = update.Type.Normalize()
	}
	if update.Description != nil {
		next.Description = *update.Description
	}
	switch {
	case update.ClearCustomer:
		next.CustomerID = ""
		next.CustomerName = ""
	case update.CustomerID != nil:
		next.CustomerID = *update.CustomerID
	}
	next.UpdatedAt = ts

	if next.CustomerID != "" {
		if i := findCustomer(customers, next.CustomerID); i >= 0 {
			next.CustomerName = customers[i].Name
			applyBalance(&customers[i], next.BalanceEffect(), ts)
		}
	}
	transactions[idx] = next

	if err := s.commit(ctx, customers, transactions); err != nil {
		return domain.Transaction{}, err
	}
	return next, nil
}

// DeleteTransaction removes a transaction, reversing its balance effect on
// its linked customer in the same commit.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transactions := s.loadTransactions(ctx)
	idx := findTransaction(transactions, id)
	if idx < 0 {
		return ErrNotFound
	}
	old := transactions[idx]
	transactions = append(transactions[:idx], transactions[idx+1:]...)

	var customers []domain.Customer
	if old.CustomerID != "" {
		customers = s.loadCustomers(ctx)
		if i := findCustomer(customers, old.CustomerID); i >= 0 {
			applyBalance(&customers[i], old.BalanceEffect().Neg(), domain.Timestamp(s.now()))
		} else {
			customers = nil
		}
	}

	return s.commit(ctx, customers, transactions)
}

func findTransaction(transactions []domain.Transaction, id string) int {
	for i := range transactions {
		if transactions[i].ID == id {
			return i
		}
	}
	return -1
}

func applyBalance(c *domain.Customer, delta decimal.Decimal, ts string) {
	c.Balance = c.Balance.Add(delta)
	c.UpdatedAt = ts
}
