package handlers

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"finance-ledger/internal/models"
)

// TransactionView is the wire form of a transaction. Values are JSON numbers.
type TransactionView struct {
	ID          string      `json:"id"`
	Value       json.Number `json:"value"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Type        string      `json:"type"`
}

// LedgerView is returned by delete and edit.
type LedgerView struct {
	Transactions []TransactionView `json:"transactions"`
	Balance      json.Number       `json:"balance"`
}

// HomeView is returned by GET /home.
type HomeView struct {
	Transactions []TransactionView `json:"transactions"`
	Balance      json.Number       `json:"balance"`
	Username     string            `json:"username"`
}

// SignInView is returned by a successful sign-in.
type SignInView struct {
	Token        string            `json:"token"`
	Name         string            `json:"name"`
	Balance      json.Number       `json:"balance"`
	Transactions []TransactionView `json:"transactions"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func transactionViews(ts []models.Transaction) []TransactionView {
	out := make([]TransactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, TransactionView{
			ID:          t.ID,
			Value:       number(t.Value),
			Description: t.Description,
			Date:        t.Date,
			Type:        string(t.Type),
		})
	}
	return out
}

func ledgerView(l *models.Ledger) LedgerView {
	return LedgerView{Transactions: transactionViews(l.Transactions), Balance: number(l.Balance)}
}

// rawValue turns a JSON number or numeric string into text for validation.
// Anything else, including a missing field, yields a value that fails to parse.
func rawValue(m json.RawMessage) string {
	s := strings.TrimSpace(string(m))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(m, &str); err != nil {
			return ""
		}
		return str
	}
	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		return s
	}
	return ""
}
