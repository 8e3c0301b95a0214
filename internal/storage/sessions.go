package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finance-ledger/internal/models"
)

// CreateSession stores a new session. A user may hold any number of them.
func (db *DB) CreateSession(ctx context.Context, s models.Session) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, email, created_at, expires_at, last_activity) VALUES (?, ?, ?, ?, ?)",
		s.Token, s.Email, s.CreatedAt.UnixMilli(), s.ExpiresAt.UnixMilli(), s.LastActivity.UnixMilli(),
	)
	return err
}

// GetSession returns the session for token if it has not expired at now.
func (db *DB) GetSession(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT token, email, created_at, expires_at, last_activity FROM sessions WHERE token = ? AND expires_at > ?",
		token, now.UnixMilli(),
	)

	var s models.Session
	var created, expires, active int64
	if err := row.Scan(&s.Token, &s.Email, &created, &expires, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(created)
	s.ExpiresAt = time.UnixMilli(expires)
	s.LastActivity = time.UnixMilli(active)
	return &s, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, now, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		now.UnixMilli(), newExpiresAt.UnixMilli(), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all sessions expired at now and reports how many.
func (db *DB) CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
