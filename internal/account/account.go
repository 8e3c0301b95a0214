// Package account registers users and opens and closes their sessions.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"finance-ledger/internal/auth"
	"finance-ledger/internal/models"
	"finance-ledger/internal/storage"
)

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when signing in with an unknown email.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword is returned when the password does not match.
	ErrWrongPassword = errors.New("wrong password")
)

// Messages shown to the caller.
const (
	MsgShortPassword  = "Senha deve ter no mínimo 3 caracteres"
	MsgInvalidName    = "Campo nome inválido"
	MsgInvalidEmail   = "Campo email inválido"
	MsgInvalidSignIn  = "Campos inseridos inválidos"
	MsgEmailTaken     = "Já existe um usuário cadastrado com este e-mail"
	MsgUnknownUser    = "Usuário não encontrado"
	MsgWrongPassword  = "Senha incorreta"
	minPasswordLength = 3
)

// Store is the persistence accounts need.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error)
	GetUser(ctx context.Context, email string) (*models.User, error)
	GetLedger(ctx context.Context, email string) (*models.Ledger, error)
	CreateSession(ctx context.Context, s models.Session) error
	DeleteSession(ctx context.Context, token string) error
}

// Service implements registration, sign-in and sign-out.
type Service struct {
	store      Store
	sessionTTL time.Duration
	cost       int
	now        func() time.Time
}

// NewService creates a Service. Sessions live for sessionTTL; a zero
// bcryptCost selects bcrypt.DefaultCost.
func NewService(store Store, sessionTTL time.Duration, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, sessionTTL: sessionTTL, cost: bcryptCost, now: time.Now}
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignInRequest is the sign-in form.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResult is returned on successful sign-in.
type SignInResult struct {
	Token  string
	Ledger *models.Ledger
}

// Register creates a user with an empty ledger.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	var msgs []string
	if len(req.Password) < minPasswordLength {
		msgs = append(msgs, MsgShortPassword)
	}
	if strings.TrimSpace(req.Name) == "" {
		msgs = append(msgs, MsgInvalidName)
	}
	if !validEmail(req.Email) {
		msgs = append(msgs, MsgInvalidEmail)
	}
	if len(msgs) > 0 {
		return &models.ValidationError{Messages: msgs}
	}

	hash, err := auth.HashPassword(req.Password, s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.store.CreateUser(ctx, req.Email, hash, req.Name); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SignIn checks credentials and opens a new session.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	if !validEmail(req.Email) || len(req.Password) < minPasswordLength {
		return nil, &models.ValidationError{Messages: []string{MsgInvalidSignIn}}
	}

	user, err := s.store.GetUser(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now()
	err = s.store.CreateSession(ctx, models.Session{
		Token:        token,
		Email:        user.Email,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
		LastActivity: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	l, err := s.store.GetLedger(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &SignInResult{Token: token, Ledger: l}, nil
}

// SignOut revokes the session behind token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}
