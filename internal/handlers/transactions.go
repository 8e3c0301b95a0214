package handlers

import (
	"encoding/json"
	"net/http"

	"finance-ledger/internal/ledger"
)

type createBody struct {
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

type editBody struct {
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
}

// Home handles GET /home.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r)
	l, err := h.engine.Get(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HomeView{
		Transactions: transactionViews(l.Transactions),
		Balance:      number(l.Balance),
		Username:     l.Name,
	})
}

// CreateTransaction handles POST /nova-transacao/{type}.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r)
	var body createBody
	if !decodeBody(w, r, &body) {
		return
	}
	err := h.engine.Create(r.Context(), id.Email, ledger.CreateRequest{
		Type:        r.PathValue("type"),
		Value:       rawValue(body.Value),
		Description: body.Description,
		Date:        body.Date,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteTransaction handles DELETE /deletar-registro/{id}.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r)
	txID := r.PathValue("id")
	if txID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	l, err := h.engine.Delete(r.Context(), id.Email, txID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ledgerView(l))
}

// EditTransaction handles PUT /editar-registro/{type}/{id}.
func (h *Handlers) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r)
	txID := r.PathValue("id")
	if txID == "" {
		writeJSON(w, http.StatusNotFound, messageResponse{ledger.MsgMissingEditTarget})
		return
	}
	var body editBody
	if !decodeBody(w, r, &body) {
		return
	}
	l, err := h.engine.Edit(r.Context(), id.Email, ledger.EditRequest{
		Type:        r.PathValue("type"),
		ID:          txID,
		Value:       rawValue(body.Value),
		Description: body.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ledgerView(l))
}

// Routes registers every endpoint on a new mux.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	authed := func(fn http.HandlerFunc) http.Handler { return h.AuthMiddleware(fn) }

	mux.HandleFunc("POST /cadastro", h.Register)
	mux.HandleFunc("POST /{$}", h.SignIn)
	mux.Handle("DELETE /sessao", authed(h.SignOut))

	mux.Handle("GET /home", authed(h.Home))
	mux.Handle("POST /nova-transacao/{type}", authed(h.CreateTransaction))
	mux.Handle("DELETE /deletar-registro/{id}", authed(h.DeleteTransaction))
	mux.Handle("DELETE /deletar-registro/{$}", authed(h.DeleteTransaction))
	mux.Handle("PUT /editar-registro/{type}/{id}", authed(h.EditTransaction))
	mux.Handle("PUT /editar-registro/{type}/{$}", authed(h.EditTransaction))

	return CORS(mux)
}
