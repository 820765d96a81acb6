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
)

// RealmResponse represents a realm in API responses.
type RealmResponse struct {
	ID                 int64              `json:"id"`
	AccountID          int64              `json:"account_id"`
	Domain             string             `json:"domain"`
	Type               policy.RealmType   `json:"type"`
	AllowedRecordTypes []string           `json:"allowed_record_types"`
	AllowedOperations  []policy.Operation `json:"allowed_operations"`
	Status             policy.RealmStatus `json:"status"`
	CreatedAt          string             `json:"created_at"`
	ApprovedAt         *string            `json:"approved_at,omitempty"`
}

func realmResponse(r *policy.Realm) RealmResponse {
	resp := RealmResponse{
		ID:                 r.ID,
		AccountID:          r.AccountID,
		Domain:             r.Domain,
		Type:               r.Type,
		AllowedRecordTypes: r.AllowedRecordTypes,
		AllowedOperations:  r.AllowedOperations,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.ApprovedAt != nil {
		s := r.ApprovedAt.UTC().Format(time.RFC3339)
		resp.ApprovedAt = &s
	}
	return resp
}

// CreateRealmRequest is the request body for POST /api/realms.
type CreateRealmRequest struct {
	AccountID          int64              `json:"account_id"`
	Domain             string             `json:"domain"`
	Type               policy.RealmType   `json:"type"`
	AllowedRecordTypes []string           `json:"allowed_record_types"`
	AllowedOperations  []policy.Operation `json:"allowed_operations"`
}

// HandleCreateRealm registers a realm claim. New realms start pending and
// grant nothing until approved.
// POST /api/realms
func (h *Handler) HandleCreateRealm(w http.ResponseWriter, r *http.Request) {
	var req CreateRealmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}

	realm := &policy.Realm{
		AccountID:          req.AccountID,
		Domain:             policy.NormalizeHostname(req.Domain),
		Type:               req.Type,
		AllowedRecordTypes: policy.NormalizeRecordTypes(req.AllowedRecordTypes),
		AllowedOperations:  req.AllowedOperations,
		Status:             policy.RealmStatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	if err := policy.ValidateRealm(realm); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if _, err := h.storage.GetAccount(r.Context(), req.AccountID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Unknown account")
			return
		}
		h.internalError(w, "account lookup failed", err)
		return
	}

	created, err := h.storage.CreateRealm(r.Context(), realm)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			WriteError(w, http.StatusConflict, ErrCodeConflict, "Realm already exists for this account, domain, and type")
			return
		}
		h.internalError(w, "failed to create realm", err)
		return
	}

	h.logger.Info("realm created", "id", created.ID, "domain", created.Domain, "type", created.Type)
	writeJSON(w, http.StatusCreated, realmResponse(created))
}

// HandleListRealms returns realms, optionally filtered by account.
// GET /api/realms?account_id=N
func (h *Handler) HandleListRealms(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid account_id")
			return
		}
		accountID = id
	}

	realms, err := h.storage.ListRealms(r.Context(), accountID)
	if err != nil {
		h.internalError(w, "failed to list realms", err)
		return
	}

	response := make([]RealmResponse, len(realms))
	for i, realm := range realms {
		response[i] = realmResponse(realm)
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleGetRealm returns one realm.
// GET /api/realms/{id}
func (h *Handler) HandleGetRealm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.realmID(w, r)
	if !ok {
		return
	}
	realm, err := h.storage.GetRealm(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "Realm not found")
			return
		}
		h.internalError(w, "failed to get realm", err)
		return
	}
	writeJSON(w, http.StatusOK, realmResponse(realm))
}

// HandleApproveRealm transitions a pending realm to approved.
// POST /api/realms/{id}/approve
func (h *Handler) HandleApproveRealm(w http.ResponseWriter, r *http.Request) {
	h.transitionRealm(w, r, "approve", func(id int64) error {
		return h.storage.ApproveRealm(r.Context(), id, time.Now().UTC())
	})
}

// HandleRejectRealm transitions a pending realm to rejected.
// POST /api/realms/{id}/reject
func (h *Handler) HandleRejectRealm(w http.ResponseWriter, r *http.Request) {
	h.transitionRealm(w, r, "reject", func(id int64) error {
		return h.storage.RejectRealm(r.Context(), id)
	})
}

// HandleRevokeRealm transitions an approved realm to revoked and
// deactivates every token issued under it.
// POST /api/realms/{id}/revoke
func (h *Handler) HandleRevokeRealm(w http.ResponseWriter, r *http.Request) {
	h.transitionRealm(w, r, "revoke", func(id int64) error {
		return h.storage.RevokeRealm(r.Context(), id, time.Now().UTC())
	})
}

func (h *Handler) transitionRealm(w http.ResponseWriter, r *http.Request, action string, fn func(id int64) error) {
	id, ok := h.realmID(w, r)
	if !ok {
		return
	}
	if err := fn(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Either the realm does not exist or it is not in the source
			// state of the transition.
			WriteErrorWithHint(w, http.StatusConflict, ErrCodeInvalidState,
				"Realm not found or not in a state that allows "+action,
				"approve and reject require a pending realm; revoke requires an approved realm")
			return
		}
		h.internalError(w, "realm transition failed", err)
		return
	}

	realm, err := h.storage.GetRealm(r.Context(), id)
	if err != nil {
		h.internalError(w, "failed to reload realm", err)
		return
	}
	h.logger.Info("realm transition", "action", action, "id", id, "domain", realm.Domain)
	writeJSON(w, http.StatusOK, realmResponse(realm))
}

func (h *Handler) realmID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid realm ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal error")
}
