package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zonegate/zonegate/internal/policy"
	"github.com/zonegate/zonegate/internal/storage"
	"github.com/zonegate/zonegate/internal/token"
)

// TokenResponse represents a token in API responses. The secret is never
// included; it is returned exactly once, at creation or rotation.
type TokenResponse struct {
	ID                 int64              `json:"id"`
	RealmID            int64              `json:"realm_id"`
	Name               string             `json:"name"`
	Prefix             string             `json:"prefix"`
	AllowedRecordTypes []string           `json:"allowed_record_types,omitempty"`
	AllowedOperations  []policy.Operation `json:"allowed_operations,omitempty"`
	AllowedIPRanges    []string           `json:"allowed_ip_ranges,omitempty"`
	ExpiresAt          *string            `json:"expires_at,omitempty"`
	IsActive           bool               `json:"is_active"`
	RevokedAt          *string            `json:"revoked_at,omitempty"`
	LastUsedAt         *string            `json:"last_used_at,omitempty"`
	UseCount           int64              `json:"use_count"`
	CreatedAt          string             `json:"created_at"`
}

// CreateTokenResponse includes the full bearer string, shown only once.
type CreateTokenResponse struct {
	TokenResponse
	Bearer string `json:"bearer"`
}

func tokenResponse(t *policy.Token) TokenResponse {
	resp := TokenResponse{
		ID:                 t.ID,
		RealmID:            t.RealmID,
		Name:               t.Name,
		Prefix:             t.Prefix,
		AllowedRecordTypes: t.AllowedRecordTypes,
		AllowedOperations:  t.AllowedOperations,
		AllowedIPRanges:    t.AllowedIPRanges,
		IsActive:           t.IsActive,
		UseCount:           t.UseCount,
		CreatedAt:          t.CreatedAt.UTC().Format(time.RFC3339),
	}
	resp.ExpiresAt = rfc3339Ptr(t.ExpiresAt)
	resp.RevokedAt = rfc3339Ptr(t.RevokedAt)
	resp.LastUsedAt = rfc3339Ptr(t.LastUsedAt)
	return resp
}

func rfc3339Ptr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// CreateTokenRequest is the request body for POST /api/tokens. The scoping
// fields are optional; omitting one inherits the realm's full set.
type CreateTokenRequest struct {
	RealmID            int64              `json:"realm_id"`
	Name               string             `json:"name"`
	AllowedRecordTypes []string           `json:"allowed_record_types"`
	AllowedOperations  []policy.Operation `json:"allowed_operations"`
	AllowedIPRanges    []string           `json:"allowed_ip_ranges"`
	ExpiresAt          *time.Time         `json:"expires_at"`
}

// HandleCreateToken issues a token under an approved realm. The response
// carries the complete bearer string; it cannot be retrieved again.
// POST /api/tokens
func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}

	realm, err := h.storage.GetRealm(r.Context(), req.RealmID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Realm not found")
			return
		}
		h.internalError(w, "realm lookup failed", err)
		return
	}
	if realm.Status != policy.RealmStatusApproved {
		WriteErrorWithHint(w, http.StatusConflict, ErrCodeInvalidState,
			"Tokens can only be issued under an approved realm",
			"Current realm status: "+string(realm.Status))
		return
	}

	spec := &policy.Token{
		RealmID:            realm.ID,
		Name:               req.Name,
		AllowedRecordTypes: policy.NormalizeRecordTypes(req.AllowedRecordTypes),
		AllowedOperations:  req.AllowedOperations,
		AllowedIPRanges:    req.AllowedIPRanges,
		ExpiresAt:          req.ExpiresAt,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	if err := policy.ValidateToken(realm, spec); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	created, bearer, err := h.issueToken(r, realm, spec)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			WriteError(w, http.StatusConflict, ErrCodeConflict, "A token with this name already exists in the realm")
			return
		}
		h.internalError(w, "failed to create token", err)
		return
	}

	h.logger.Info("token created", "id", created.ID, "realm_id", realm.ID, "name", created.Name, "prefix", created.Prefix)
	writeJSON(w, http.StatusCreated, CreateTokenResponse{
		TokenResponse: tokenResponse(created),
		Bearer:        bearer,
	})
}

// issueToken generates the secret material, stores the hashed token, and
// returns the row plus the one-time bearer string.
func (h *Handler) issueToken(r *http.Request, realm *policy.Realm, spec *policy.Token) (*policy.Token, string, error) {
	account, err := h.storage.GetAccount(r.Context(), realm.AccountID)
	if err != nil {
		return nil, "", err
	}

	secret, err := token.GenerateSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := token.Hash(secret)
	if err != nil {
		return nil, "", err
	}
	spec.Prefix = token.LookupPrefix(secret)
	spec.Hash = hash

	created, err := h.storage.CreateToken(r.Context(), spec)
	if err != nil {
		return nil, "", err
	}
	return created, token.Format(account.Alias, secret), nil
}

// HandleListTokens returns the tokens of a realm.
// GET /api/realms/{id}/tokens
func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	realmID, ok := h.realmID(w, r)
	if !ok {
		return
	}
	tokens, err := h.storage.ListTokensByRealm(r.Context(), realmID)
	if err != nil {
		h.internalError(w, "failed to list tokens", err)
		return
	}

	response := make([]TokenResponse, len(tokens))
	for i, t := range tokens {
		response[i] = tokenResponse(t)
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleGetToken returns one token.
// GET /api/tokens/{id}
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.loadToken(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

// UpdateTokenRequest is the request body for PUT /api/tokens/{id}. Only
// scoping fields can change; identity and secret material are immutable.
type UpdateTokenRequest struct {
	Name               *string            `json:"name"`
	AllowedRecordTypes []string           `json:"allowed_record_types"`
	AllowedOperations  []policy.Operation `json:"allowed_operations"`
	AllowedIPRanges    []string           `json:"allowed_ip_ranges"`
	ExpiresAt          *time.Time         `json:"expires_at"`
	ClearExpiry        bool               `json:"clear_expiry"`
}

// HandleUpdateToken edits a token's scoping. Changes take effect on the
// next authorization.
// PUT /api/tokens/{id}
func (h *Handler) HandleUpdateToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.loadToken(w, r)
	if !ok {
		return
	}

	var req UpdateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}

	if req.Name != nil {
		tok.Name = *req.Name
	}
	if req.AllowedRecordTypes != nil {
		tok.AllowedRecordTypes = policy.NormalizeRecordTypes(req.AllowedRecordTypes)
	}
	if req.AllowedOperations != nil {
		tok.AllowedOperations = req.AllowedOperations
	}
	if req.AllowedIPRanges != nil {
		tok.AllowedIPRanges = req.AllowedIPRanges
	}
	if req.ExpiresAt != nil {
		tok.ExpiresAt = req.ExpiresAt
	} else if req.ClearExpiry {
		tok.ExpiresAt = nil
	}

	realm, err := h.storage.GetRealm(r.Context(), tok.RealmID)
	if err != nil {
		h.internalError(w, "realm lookup failed", err)
		return
	}
	if err := policy.ValidateToken(realm, tok); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	if err := h.storage.UpdateTokenScoping(r.Context(), tok); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusConflict, ErrCodeInvalidState, "Token is revoked and can no longer be edited")
			return
		}
		h.internalError(w, "failed to update token", err)
		return
	}

	h.logger.Info("token updated", "id", tok.ID)
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

// HandleRevokeToken permanently deactivates a token.
// POST /api/tokens/{id}/revoke
func (h *Handler) HandleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return
	}
	if err := h.storage.RevokeToken(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Token not found or already revoked")
			return
		}
		h.internalError(w, "failed to revoke token", err)
		return
	}

	tok, err := h.storage.GetTokenByID(r.Context(), id)
	if err != nil {
		h.internalError(w, "failed to reload token", err)
		return
	}
	h.logger.Info("token revoked", "id", id)
	writeJSON(w, http.StatusOK, tokenResponse(tok))
}

// HandleRotateToken revokes a token and issues a replacement with the same
// name and scoping under the same realm. The old bearer stops working
// immediately; the new bearer is returned once.
// POST /api/tokens/{id}/rotate
func (h *Handler) HandleRotateToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.loadToken(w, r)
	if !ok {
		return
	}
	if !tok.IsActive || tok.Revoked() {
		WriteError(w, http.StatusConflict, ErrCodeInvalidState, "Only an active token can be rotated")
		return
	}

	realm, err := h.storage.GetRealm(r.Context(), tok.RealmID)
	if err != nil {
		h.internalError(w, "realm lookup failed", err)
		return
	}

	if err := h.storage.RevokeToken(r.Context(), tok.ID, time.Now().UTC()); err != nil {
		h.internalError(w, "failed to revoke token during rotation", err)
		return
	}

	replacement := &policy.Token{
		RealmID:            tok.RealmID,
		Name:               tok.Name,
		AllowedRecordTypes: tok.AllowedRecordTypes,
		AllowedOperations:  tok.AllowedOperations,
		AllowedIPRanges:    tok.AllowedIPRanges,
		ExpiresAt:          tok.ExpiresAt,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	created, bearer, err := h.issueToken(r, realm, replacement)
	if err != nil {
		h.internalError(w, "failed to issue replacement token", err)
		return
	}

	h.logger.Info("token rotated", "old_id", tok.ID, "new_id", created.ID)
	writeJSON(w, http.StatusCreated, CreateTokenResponse{
		TokenResponse: tokenResponse(created),
		Bearer:        bearer,
	})
}

func (h *Handler) loadToken(w http.ResponseWriter, r *http.Request) (*policy.Token, bool) {
	id, ok := h.tokenID(w, r)
	if !ok {
		return nil, false
	}
	tok, err := h.storage.GetTokenByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Token not found")
			return nil, false
		}
		h.internalError(w, "failed to get token", err)
		return nil, false
	}
	return tok, true
}

func (h *Handler) tokenID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid token ID")
		return 0, false
	}
	return id, true
}
