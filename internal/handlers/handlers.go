package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finance-ledger/internal/account"
	"finance-ledger/internal/auth"
	"finance-ledger/internal/ledger"
	"finance-ledger/internal/models"
)

// Context key type to avoid collisions.
type contextKey string

// IdentityContextKey is the context key for the authenticated identity.
const IdentityContextKey contextKey = "identity"

const (
	msgNotLoggedIn   = "Usuário não está logado!"
	msgUserMissing   = "Usuário não existe!"
	msgInvalidBody   = "Campos inseridos inválidos"
	msgTxNotFound    = "Transação não encontrada"
	msgInternalError = "Internal server error"

	maxBodyBytes = 1 << 20
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	gate     *auth.Gate
	engine   *ledger.Engine
	accounts *account.Service
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger discards output.
func NewHandlers(gate *auth.Gate, engine *ledger.Engine, accounts *account.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{gate: gate, engine: engine, accounts: accounts, logger: logger}
}

// GetIdentityFromContext retrieves the authenticated identity from request context.
func GetIdentityFromContext(r *http.Request) (auth.Identity, bool) {
	id, ok := r.Context().Value(IdentityContextKey).(auth.Identity)
	return id, ok
}

// AuthMiddleware resolves the bearer token before calling next.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if auth.TokenFromHeader(header) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		id, err := h.gate.Resolve(r.Context(), header)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORS allows any origin and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Message: verr.Error(), Errors: verr.Messages})
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, messageResponse{msgNotLoggedIn})
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, ledger.ErrUserNotFound):
		writeJSON(w, http.StatusUnauthorized, messageResponse{msgUserMissing})
	case errors.Is(err, ledger.ErrTransactionNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{msgTxNotFound})
	case errors.Is(err, account.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, messageResponse{account.MsgEmailTaken})
	case errors.Is(err, account.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{account.MsgUnknownUser})
	case errors.Is(err, account.ErrWrongPassword):
		writeJSON(w, http.StatusUnauthorized, messageResponse{account.MsgWrongPassword})
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{msgInternalError})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON request body. It reports false, after writing a
// 422 response, when the body is not valid JSON for v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Message: msgInvalidBody, Errors: []string{msgInvalidBody}})
		return false
	}
	return true
}
