package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finance-ledger/internal/models"
	"finance-ledger/internal/storage"
)

var (
	// ErrUnauthenticated is returned for a missing, unknown or expired token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound is returned when a valid session points at a user that no longer exists.
	ErrUserNotFound = errors.New("session user not found")
)

const bearerPrefix = "Bearer "

// SessionStore is the persistence the gate needs.
type SessionStore interface {
	GetSession(ctx context.Context, token string, now time.Time) (*models.Session, error)
	RenewSession(ctx context.Context, token string, now, newExpiresAt time.Time) error
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// Identity is the authenticated caller.
type Identity struct {
	Email string
	Name  string
	Token string
}

// Gate resolves bearer headers to identities.
// Sessions past half of their TTL are renewed for another full TTL.
type Gate struct {
	store  SessionStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewGate creates a Gate over store. A nil logger discards output.
func NewGate(store SessionStore, ttl time.Duration, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{store: store, ttl: ttl, logger: logger, now: time.Now}
}

// TokenFromHeader strips the bearer prefix. It returns "" when nothing is left.
func TokenFromHeader(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// Resolve looks up the session named by an Authorization header value.
func (g *Gate) Resolve(ctx context.Context, header string) (Identity, error) {
	token := TokenFromHeader(header)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	now := g.now()
	session, err := g.store.GetSession(ctx, token, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}

	user, err := g.store.GetUser(ctx, session.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, fmt.Errorf("lookup session user: %w", err)
	}

	if g.ttl > 0 && session.ExpiresAt.Sub(now) < g.ttl/2 {
		if err := g.store.RenewSession(ctx, token, now, now.Add(g.ttl)); err != nil {
			// The current session is still valid, keep serving it.
			g.logger.Warn("session renewal failed", "email", session.Email, "error", err)
		}
	}

	return Identity{Email: user.Email, Name: user.Name, Token: token}, nil
}
