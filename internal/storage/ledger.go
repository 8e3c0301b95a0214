package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finance-ledger/internal/models"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetLedger loads a user's balance and transactions in insertion order.
func (db *DB) GetLedger(ctx context.Context, email string) (*models.Ledger, error) {
	return loadLedger(ctx, db.conn, email)
}

// UpdateLedger runs a read-modify-write cycle on one user's ledger inside a
// single transaction. fn receives the current ledger and mutates it in
// place; the result is written back only if the stored version is still the
// one that was read. The ledger as written is returned.
func (db *DB) UpdateLedger(ctx context.Context, email string, fn func(*models.Ledger) error) (*models.Ledger, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	l, err := loadLedger(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	read := l.Version

	if err := fn(l); err != nil {
		return nil, err
	}
	if db.beforeWrite != nil {
		if err := db.beforeWrite(ctx, tx); err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET balance = ?, version = version + 1 WHERE email = ? AND version = ?",
		l.Balance.String(), email, read,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("user %s at version %d: %w", email, read, ErrStaleLedger)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE user_email = ?", email); err != nil {
		return nil, err
	}
	for i, t := range l.Transactions {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transactions (id, user_email, position, value, description, date, type) VALUES (?, ?, ?, ?, ?, ?, ?)",
			t.ID, email, i, t.Value.String(), t.Description, t.Date, string(t.Type),
		)
		if err != nil {
			return nil, fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	l.Version = read + 1
	return l, nil
}

func loadLedger(ctx context.Context, q querier, email string) (*models.Ledger, error) {
	l := &models.Ledger{Email: email, Transactions: []models.Transaction{}}
	row := q.QueryRowContext(ctx, "SELECT name, balance, version FROM users WHERE email = ?", email)
	if err := row.Scan(&l.Name, &l.Balance, &l.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT id, value, description, date, type FROM transactions WHERE user_email = ? ORDER BY position",
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.Value, &t.Description, &t.Date, &typ); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(typ)
		l.Transactions = append(l.Transactions, t)
	}
	return l, rows.Err()
}
