// Package proxy implements the protected DNS record API. Every request is
// authorized against the caller's realm and token scoping before it is
// forwarded to the upstream registrar with the master key attached.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zonegate/zonegate/internal/authz"
	"github.com/zonegate/zonegate/internal/upstream"
)

// Upstream defines the registrar API operations the proxy forwards.
// This interface enables testing with mock implementations.
type Upstream interface {
	// ListRecords retrieves the records for a hostname, optionally filtered
	// by record type.
	ListRecords(ctx context.Context, hostname, recordType string) ([]upstream.Record, error)

	// CreateRecord creates a record for a hostname.
	CreateRecord(ctx context.Context, hostname string, rec upstream.Record) (*upstream.Record, error)

	// UpdateRecord replaces the record of the given type for a hostname.
	UpdateRecord(ctx context.Context, hostname string, rec upstream.Record) (*upstream.Record, error)

	// DeleteRecord removes the record of the given type for a hostname.
	DeleteRecord(ctx context.Context, hostname, recordType string) error
}

// Handler handles authorized record requests by forwarding them upstream.
type Handler struct {
	upstream Upstream
	logger   *slog.Logger
}

// NewHandler creates a new proxy handler.
// If logger is nil, slog.Default() will be used.
func NewHandler(upstream Upstream, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upstream: upstream,
		logger:   logger,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleUpstreamError maps registrar client errors to HTTP responses.
func (h *Handler) handleUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, upstream.ErrUnauthorized):
		// Master key issue: the gate's own registrar credentials are invalid.
		h.logger.Error("upstream authentication failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream authentication failed")
	default:
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			// Forward the registrar status (e.g. 400 for validation errors).
			writeError(w, apiErr.StatusCode, apiErr.Message)
			return
		}
		h.logger.Error("upstream API error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// logDecision logs the forwarded operation. Caller identity is logged by the
// authorization layer; here only the verdict reason is repeated.
func (h *Handler) logDecision(r *http.Request, operation, hostname, recordType string) {
	attrs := []any{"operation", operation, "hostname", hostname, "type", recordType}
	if v, ok := authz.VerdictFromContext(r.Context()); ok {
		attrs = append(attrs, "reason", string(v.Reason))
	}
	h.logger.Info("forwarded record operation", attrs...)
}

// HandleListRecords lists the records for a hostname.
// GET /records/{hostname}?type=A
func (h *Handler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.upstream.ListRecords(r.Context(), req.Hostname, req.RecordType)
	if err != nil {
		h.handleUpstreamError(w, err)
		return
	}

	h.logDecision(r, "read", req.Hostname, req.RecordType)
	writeJSON(w, http.StatusOK, records)
}

// HandleCreateRecord creates a record for a hostname.
// POST /records/{hostname}
// Body: {"type": "A", "value": "1.2.3.4", "ttl": 300}
func (h *Handler) HandleCreateRecord(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var rec upstream.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec.Name = req.Hostname
	rec.Type = req.RecordType

	created, err := h.upstream.CreateRecord(r.Context(), req.Hostname, rec)
	if err != nil {
		h.handleUpstreamError(w, err)
		return
	}

	h.logDecision(r, "create", req.Hostname, req.RecordType)
	writeJSON(w, http.StatusCreated, created)
}

// HandleUpdateRecord replaces the record of a given type for a hostname.
// PUT /records/{hostname}
// Body: {"type": "A", "value": "5.6.7.8", "ttl": 300}
func (h *Handler) HandleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var rec upstream.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec.Name = req.Hostname
	rec.Type = req.RecordType

	updated, err := h.upstream.UpdateRecord(r.Context(), req.Hostname, rec)
	if err != nil {
		h.handleUpstreamError(w, err)
		return
	}

	h.logDecision(r, "update", req.Hostname, req.RecordType)
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteRecord removes the record of a given type for a hostname.
// DELETE /records/{hostname}?type=A
func (h *Handler) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.upstream.DeleteRecord(r.Context(), req.Hostname, req.RecordType); err != nil {
		h.handleUpstreamError(w, err)
		return
	}

	h.logDecision(r, "delete", req.Hostname, req.RecordType)
	w.WriteHeader(http.StatusNoContent)
}
