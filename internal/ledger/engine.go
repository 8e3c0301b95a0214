// Package ledger keeps a user's cached balance equal to the signed sum of
// their transactions across create, edit and delete.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-ledger/internal/models"
	"finance-ledger/internal/storage"
)

// Store is the ledger persistence. UpdateLedger must apply fn and write the
// result atomically with respect to other updates of the same user.
type Store interface {
	GetLedger(ctx context.Context, email string) (*models.Ledger, error)
	UpdateLedger(ctx context.Context, email string, fn func(*models.Ledger) error) (*models.Ledger, error)
}

// Engine applies ledger mutations for authenticated users.
type Engine struct {
	store Store
	newID func() string
}

// NewEngine creates an Engine over store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, newID: uuid.NewString}
}

// CreateRequest describes a new transaction. Type and Value are raw inputs
// and are validated here.
type CreateRequest struct {
	Type        string
	Value       string
	Description string
	Date        string
}

// EditRequest describes an edit. Type is checked but never stored: the type
// of an existing transaction is immutable.
type EditRequest struct {
	Type        string
	ID          string
	Value       string
	Description string
}

// Get returns the user's ledger as stored.
func (e *Engine) Get(ctx context.Context, email string) (*models.Ledger, error) {
	l, err := e.store.GetLedger(ctx, email)
	if err != nil {
		return nil, storeErr(err)
	}
	return l, nil
}

// Create appends a transaction and adds its signed value to the balance.
func (e *Engine) Create(ctx context.Context, email string, req CreateRequest) error {
	var errs errorList
	typ, typErr := models.ParseTransactionType(req.Type)
	if typErr != nil {
		errs.add(MsgInvalidType)
	}
	value := validateValue(req.Value, &errs)
	if strings.TrimSpace(req.Description) == "" {
		errs.add(MsgEmptyDescription)
	}
	if strings.TrimSpace(req.Date) == "" {
		errs.add(MsgInvalidDate)
	}
	if err := errs.err(); err != nil {
		return err
	}

	t := models.Transaction{
		ID:          e.newID(),
		Value:       value,
		Description: req.Description,
		Date:        req.Date,
		Type:        typ,
	}
	_, err := e.store.UpdateLedger(ctx, email, func(l *models.Ledger) error {
		// Appending leaves earlier entries untouched, so the cached balance
		// can be patched instead of recomputed.
		l.Transactions = append(l.Transactions, t)
		l.Balance = l.Balance.Add(t.Signed())
		return nil
	})
	return storeErr(err)
}

// Delete removes the transaction with id. An unknown id is not an error and
// leaves the ledger unchanged.
func (e *Engine) Delete(ctx context.Context, email, id string) (*models.Ledger, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	l, err := e.store.UpdateLedger(ctx, email, func(l *models.Ledger) error {
		kept := make([]models.Transaction, 0, len(l.Transactions))
		for _, t := range l.Transactions {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		l.Transactions = kept
		l.Balance = Recompute(kept)
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return l, nil
}

// Edit replaces the value and description of an existing transaction and
// recomputes the balance over the whole list.
func (e *Engine) Edit(ctx context.Context, email string, req EditRequest) (*models.Ledger, error) {
	if req.ID == "" {
		return nil, ErrMissingID
	}

	var errs errorList
	if _, err := models.ParseTransactionType(req.Type); err != nil {
		errs.add(MsgInvalidType)
	}
	value := validateValue(req.Value, &errs)
	if strings.TrimSpace(req.Description) == "" {
		errs.add(MsgEmptyDescription)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	l, err := e.store.UpdateLedger(ctx, email, func(l *models.Ledger) error {
		i := indexOf(l.Transactions, req.ID)
		if i < 0 {
			return fmt.Errorf("transaction %s: %w", req.ID, ErrTransactionNotFound)
		}
		l.Transactions[i].Value = value
		l.Transactions[i].Description = req.Description
		l.Balance = Recompute(l.Transactions)
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return l, nil
}

func indexOf(transactions []models.Transaction, id string) int {
	for i, t := range transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Bounds on accepted values. They are checked on the parsed coefficient and
// exponent, before anything expands the number into its digits.
const (
	maxIntegerDigits  = 15
	maxFractionDigits = 8
)

func validateValue(raw string, errs *errorList) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !inRange(value) {
		errs.add(MsgValueNotNumber)
		return decimal.Zero
	}
	if !value.IsPositive() {
		errs.add(MsgValueNotPositive)
	}
	return value
}

func inRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	digits := int64(d.NumDigits())
	if d.IsZero() {
		return exp <= 0 && exp >= -maxFractionDigits
	}
	// Trailing zeros in the coefficient ("1.50000") must not count as precision,
	// but stripping them is only safe once the number has a sane size.
	if digits > maxIntegerDigits+maxFractionDigits+8 || exp > maxIntegerDigits || exp < -(maxFractionDigits+8) {
		return false
	}
	if digits+exp > maxIntegerDigits {
		return false
	}
	return d.Equal(d.Truncate(maxFractionDigits))
}

// storeErr maps storage sentinels onto ledger errors and passes the rest through.
func storeErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUserNotFound, err)
	}
	return err
}
