package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tells whether a transaction adds to or subtracts from the balance.
type TransactionType string

const (
	// Credit is an income entry ("entrada").
	Credit TransactionType = "entrada"
	// Debit is an expense entry ("saida").
	Debit TransactionType = "saida"
)

// ParseTransactionType validates a raw type value such as a path segment.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case Credit, Debit:
		return TransactionType(s), nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Transaction is a single ledger entry owned by a user.
type Transaction struct {
	ID          string          `json:"id"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Type        TransactionType `json:"type"`
}

// Signed returns the value as it contributes to the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Credit {
		return t.Value
	}
	return t.Value.Neg()
}

// User represents a registered account.
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ledger is a user's ordered transaction list plus its cached balance.
// Version increases by one on every write and guards concurrent updates.
type Ledger struct {
	Email        string
	Name         string
	Balance      decimal.Decimal
	Transactions []Transaction
	Version      int64
}

// Session represents a bearer token issued at sign-in.
type Session struct {
	Token        string    `json:"token"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}
