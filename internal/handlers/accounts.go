package handlers

import (
	"net/http"

	"finance-ledger/internal/account"
)

// Register handles POST /cadastro.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.accounts.Register(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("user registered", "email", req.Email)
	w.WriteHeader(http.StatusCreated)
}

// SignIn handles POST /.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req account.SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.accounts.SignIn(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SignInView{
		Token:        res.Token,
		Name:         res.Ledger.Name,
		Balance:      number(res.Ledger.Balance),
		Transactions: transactionViews(res.Ledger.Transactions),
	})
}

// SignOut handles DELETE /sessao. It requires AuthMiddleware.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r)
	if err := h.accounts.SignOut(r.Context(), id.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
