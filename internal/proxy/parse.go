package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zonegate/zonegate/internal/authz"
	"github.com/zonegate/zonegate/internal/policy"
)

// maxBodyBytes caps how much of a request body the parser will buffer while
// extracting the record type.
const maxBodyBytes = 1 << 20

// ParseRequest maps an HTTP request on the record API to the DNS operation
// being attempted. It is the parse function the authorization middleware
// runs, so every field it returns is part of the access decision.
//
// The record type is mandatory: the query string carries it for GET and
// DELETE, the JSON body for POST and PUT. Bodies are restored after peeking
// so handlers can decode them again.
func ParseRequest(r *http.Request) (authz.ParsedRequest, error) {
	hostname := policy.NormalizeHostname(chi.URLParam(r, "hostname"))
	if hostname == "" {
		return authz.ParsedRequest{}, errors.New("missing hostname")
	}
	if !policy.ValidDNSName(hostname) {
		return authz.ParsedRequest{}, errors.New("invalid hostname")
	}

	var (
		operation  policy.Operation
		recordType string
		err        error
	)
	switch r.Method {
	case http.MethodGet:
		operation = policy.OperationRead
		recordType = r.URL.Query().Get("type")
	case http.MethodPost:
		operation = policy.OperationCreate
		recordType, err = peekRecordType(r)
	case http.MethodPut:
		operation = policy.OperationUpdate
		recordType, err = peekRecordType(r)
	case http.MethodDelete:
		operation = policy.OperationDelete
		recordType = r.URL.Query().Get("type")
	default:
		return authz.ParsedRequest{}, errors.New("method not supported")
	}
	if err != nil {
		return authz.ParsedRequest{}, err
	}

	recordType = strings.ToUpper(strings.TrimSpace(recordType))
	if recordType == "" {
		return authz.ParsedRequest{}, errors.New("missing record type")
	}

	return authz.ParsedRequest{
		Hostname:   hostname,
		RecordType: recordType,
		Operation:  operation,
	}, nil
}

// peekRecordType reads the record type from the JSON body and puts the body
// back so the handler can decode the full record afterwards.
func peekRecordType(r *http.Request) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", errors.New("failed to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var payload struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", errors.New("invalid request body")
	}
	return payload.Type, nil
}
