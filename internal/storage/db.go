package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finance-ledger/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrStaleLedger is returned when a ledger changed between read and write.
	ErrStaleLedger = errors.New("ledger was modified concurrently")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB

	// beforeWrite, when set, runs inside UpdateLedger's transaction between
	// the read and the version-checked write.
	beforeWrite func(ctx context.Context, tx *sql.Tx) error
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers anyway, and every ":memory:" connection is
	// its own database, so the pool holds exactly one connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			balance TEXT NOT NULL DEFAULT '0',
			version INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT NOT NULL,
			user_email TEXT NOT NULL REFERENCES users(email),
			position INTEGER NOT NULL,
			value TEXT NOT NULL,
			description TEXT NOT NULL,
			date TEXT NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (user_email, id)
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_by_position ON transactions (user_email, position)`,
		// Sessions point at users by email without a foreign key: a session
		// may outlive its user, and the auth gate reports that case itself.
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			last_activity INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser inserts a user with a zero balance and no transactions.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	now := time.Now()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, name, balance, version, created_at) VALUES (?, ?, ?, '0', 0, ?)",
		email, passwordHash, name, now.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return nil, err
	}
	return db.GetUser(ctx, email)
}

// GetUser retrieves a user by email.
func (db *DB) GetUser(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT email, password_hash, name, created_at FROM users WHERE email = ?",
		email,
	)

	var u models.User
	var createdAt int64
	if err := row.Scan(&u.Email, &u.PasswordHash, &u.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdAt)
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
