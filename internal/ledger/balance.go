package ledger

import (
	"github.com/shopspring/decimal"

	"finance-ledger/internal/models"
)

// Recompute folds the signed values of transactions into a balance.
func Recompute(transactions []models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range transactions {
		balance = balance.Add(t.Signed())
	}
	return balance
}
