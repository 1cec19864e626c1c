package store

import (
	"context"
	"errors"

	"github.com/dvloznov/ledgerbook/internal/domain"
)

// ErrEmptyName is returned when a customer is created without a name.
var ErrEmptyName = errors.New("store: customer name is required")

// CustomerInput carries the caller-supplied fields for a new customer.
type CustomerInput struct {
	Name   string
	Number string
}

// CustomerUpdate carries a partial customer edit; nil fields are untouched.
// Balance is not editable directly, it only moves through transactions.
type CustomerUpdate struct {
	Name   *string
	Number *string
}

// ListCustomers returns all customers for the current identity, in insertion
// order. It never fails; read errors yield an empty slice.
func (s *Store) ListCustomers(ctx context.Context) []domain.Customer {
	return s.loadCustomers(ctx)
}

// AddCustomer creates a customer with a zero balance and persists the
// updated collection.
func (s *Store) AddCustomer(ctx context.Context, input CustomerInput) (domain.Customer, error) {
	if input.Name == "" {
		return domain.Customer{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ts := domain.Timestamp(now)
	customer := domain.Customer{
		ID:        s.newID(now),
		Name:      input.Name,
		Number:    input.Number,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	customers := append(s.loadCustomers(ctx), customer)
	if err := s.commit(ctx, customers, nil); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

// UpdateCustomer merges the given fields into an existing customer and
// refreshes its updatedAt stamp. Returns ErrNotFound if no such customer
// exists for the current identity.
func (s *Store) UpdateCustomer(ctx context.Context, id string, update CustomerUpdate) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := s.loadCustomers(ctx)
	idx := findCustomer(customers, id)
	if idx < 0 {
		return domain.Customer{}, ErrNotFound
	}

	if update.Name != nil {
		customers[idx].Name = *update.Name
	}
	if update.Number != nil {
		customers[idx].Number = *update.Number
	}
	customers[idx].UpdatedAt = domain.Timestamp(s.now())

	if err := s.commit(ctx, customers, nil); err != nil {
		return domain.Customer{}, err
	}
	return customers[idx], nil
}

// DeleteCustomer removes a customer and cascades to every transaction
// referencing it. Both collection writes land as one commit.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := s.loadCustomers(ctx)
	idx := findCustomer(customers, id)
	if idx < 0 {
		return ErrNotFound
	}
	customers = append(customers[:idx], customers[idx+1:]...)

	transactions := s.loadTransactions(ctx)
	kept := transactions[:0]
	for _, t := range transactions {
		if t.CustomerID != id {
			kept = append(kept, t)
		}
	}

	return s.commit(ctx, customers, kept)
}

func findCustomer(customers []domain.Customer, id string) int {
	for i := range customers {
		if customers[i].ID == id {
			return i
		}
	}
	return -1
}
