package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DeviceInfo records which device produced a snapshot and when.
type DeviceInfo struct {
	Platform string `json:"platform"`
	SyncTime string `json:"syncTime"`
}

// Snapshot is the full customers+transactions payload exchanged with the
// remote document store. The remote side holds exactly one such document per
// authenticated identity; it is always merge-written, never replaced
// wholesale.
type Snapshot struct {
	Customers    []Customer    `json:"customers"`
	Transactions []Transaction `json:"transactions"`
	LastSyncedAt string        `json:"lastSyncedAt"`
	DeviceInfo   DeviceInfo    `json:"deviceInfo"`
}

// NewSnapshot assembles a snapshot of the given collections stamped at now.
func NewSnapshot(customers []Customer, transactions []Transaction, platform string, now time.Time) Snapshot {
	ts := Timestamp(now)
	return Snapshot{
		Customers:    customers,
		Transactions: transactions,
		LastSyncedAt: ts,
		DeviceInfo:   DeviceInfo{Platform: platform, SyncTime: ts},
	}
}

// Fields flattens the snapshot into plain JSON-ish values (string, float64,
// bool, []any, map[string]any) for the remote access strategies. Amounts and
// balances become float64, matching the number representation existing remote
// documents use.
func (s Snapshot) Fields() map[string]any {
	customers := make([]any, 0, len(s.Customers))
	for _, c := range s.Customers {
		customers = append(customers, customerFields(c))
	}
	transactions := make([]any, 0, len(s.Transactions))
	for _, t := range s.Transactions {
		transactions = append(transactions, transactionFields(t))
	}
	return map[string]any{
		"customers":    customers,
		"transactions": transactions,
		"lastSyncedAt": s.LastSyncedAt,
		"deviceInfo": map[string]any{
			"platform": s.DeviceInfo.Platform,
			"syncTime": s.DeviceInfo.SyncTime,
		},
	}
}

// SnapshotFromFields rebuilds a snapshot from remote document fields. It is
// lenient: missing fields yield empty collections, numeric values may arrive
// as float64, int64 or string, and legacy transaction type spellings are
// normalized.
func SnapshotFromFields(fields map[string]any) Snapshot {
	var s Snapshot
	if fields == nil {
		return s
	}
	for _, v := range anySlice(fields["customers"]) {
		if m, ok := v.(map[string]any); ok {
			s.Customers = append(s.Customers, customerFromFields(m))
		}
	}
	for _, v := range anySlice(fields["transactions"]) {
		if m, ok := v.(map[string]any); ok {
			s.Transactions = append(s.Transactions, transactionFromFields(m))
		}
	}
	s.LastSyncedAt = fieldString(fields, "lastSyncedAt")
	if m, ok := fields["deviceInfo"].(map[string]any); ok {
		s.DeviceInfo = DeviceInfo{
			Platform: fieldString(m, "platform"),
			SyncTime: fieldString(m, "syncTime"),
		}
	}
	return s
}

func customerFields(c Customer) map[string]any {
	m := map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"balance":   c.Balance.InexactFloat64(),
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	}
	if c.Number != "" {
		m["number"] = c.Number
	}
	return m
}

func customerFromFields(m map[string]any) Customer {
	return Customer{
		ID:        fieldString(m, "id"),
		Name:      fieldString(m, "name"),
		Number:    fieldString(m, "number"),
		Balance:   fieldDecimal(m, "balance"),
		CreatedAt: fieldString(m, "createdAt"),
		UpdatedAt: fieldString(m, "updatedAt"),
	}
}

func transactionFields(t Transaction) map[string]any {
	m := map[string]any{
		"id":        t.ID,
		"amount":    t.Amount.InexactFloat64(),
		"type":      string(t.Type.Normalize()),
		"createdAt": t.CreatedAt,
	}
	if t.Description != "" {
		m["description"] = t.Description
	}
	if t.CustomerID != "" {
		m["customerId"] = t.CustomerID
	}
	if t.CustomerName != "" {
		m["customerName"] = t.CustomerName
	}
	if t.UpdatedAt != "" {
		m["updatedAt"] = t.UpdatedAt
	}
	return m
}

func transactionFromFields(m map[string]any) Transaction {
	return Transaction{
		ID:           fieldString(m, "id"),
		Amount:       fieldDecimal(m, "amount"),
		Type:         TransactionType(fieldString(m, "type")).Normalize(),
		Description:  fieldString(m, "description"),
		CustomerID:   fieldString(m, "customerId"),
		CustomerName: fieldString(m, "customerName"),
		CreatedAt:    fieldString(m, "createdAt"),
		UpdatedAt:    fieldString(m, "updatedAt"),
	}
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func fieldString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func fieldDecimal(m map[string]any, key string) decimal.Decimal {
	switch v := m[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case decimal.Decimal:
		return v
	}
	return decimal.Zero
}

// ParseAmount converts user input into a non-negative decimal magnitude.
// Malformed input counts as zero, matching how existing records treat
// unparseable amounts.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MarshalStable is a helper for deterministic JSON encoding of snapshots in
// logs and backups.
func (s Snapshot) MarshalStable() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
