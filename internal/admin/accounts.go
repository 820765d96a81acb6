package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zonegate/zonegate/internal/storage"
	"github.com/zonegate/zonegate/internal/token"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	CreatedAt string `json:"created_at"`
}

func accountResponse(a *storage.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Alias:     a.Alias,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateAccountRequest is the request body for POST /api/accounts.
type CreateAccountRequest struct {
	Name string `json:"name"`
}

// HandleCreateAccount registers an account and assigns it the random alias
// embedded in every bearer issued for its realms.
// POST /api/accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Name required")
		return
	}

	alias, err := token.NewAccountAlias()
	if err != nil {
		h.internalError(w, "alias generation failed", err)
		return
	}

	account, err := h.storage.CreateAccount(r.Context(), req.Name, alias)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			WriteError(w, http.StatusConflict, ErrCodeConflict, "Account name already exists")
			return
		}
		h.internalError(w, "failed to create account", err)
		return
	}

	h.logger.Info("account created", "id", account.ID, "name", account.Name)
	writeJSON(w, http.StatusCreated, accountResponse(account))
}

// HandleGetAccount looks up an account by name.
// GET /api/accounts/{name}
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	account, err := h.storage.GetAccountByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Account not found")
			return
		}
		h.internalError(w, "failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(account))
}
