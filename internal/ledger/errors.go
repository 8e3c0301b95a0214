package ledger

import (
	"errors"

	"finance-ledger/internal/models"
)

var (
	// ErrUserNotFound is returned when the ledger owner does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrTransactionNotFound is returned by Edit for an unknown transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrMissingID is returned when a transaction id is required but empty.
	ErrMissingID = errors.New("transaction id required")
)

// Validation messages shown to the caller.
const (
	MsgValueNotNumber    = "Valor não pode ser uma string em uma transação"
	MsgValueNotPositive  = "Valor não pode ser negativo em uma transação"
	MsgEmptyDescription  = "Descrição da transação não pode estar vazia"
	MsgInvalidDate       = "Data inválida"
	MsgInvalidType       = "Tipo de transação inválido"
	MsgMissingEditTarget = "É necessário um id para editar uma transação!"
)

// errorList accumulates validation messages.
type errorList []string

func (l *errorList) add(msg string) { *l = append(*l, msg) }

func (l errorList) err() error {
	if len(l) == 0 {
		return nil
	}
	return &models.ValidationError{Messages: l}
}
