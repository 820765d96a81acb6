package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockTransport is a test helper that returns pre-configured HTTP responses.
type mockTransport struct {
	statusCode int
	body       []byte
}

// RoundTrip implements http.RoundTripper for mockTransport.
func (mt *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: mt.statusCode,
		Body:       io.NopCloser(bytes.NewReader(mt.body)),
		Header:     make(http.Header),
	}, nil
}

func clientWithResponse(statusCode int, body []byte) *Client {
	return NewClient("test-key", WithHTTPClient(&http.Client{
		Transport: &mockTransport{statusCode: statusCode, body: body},
	}))
}

func TestListRecords(t *testing.T) {
	t.Parallel()
	t.Run("success", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			if r.URL.Path != "/v1/records/www.example.com" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if got := r.Header.Get("AccessKey"); got != "test-key" {
				t.Errorf("expected AccessKey header, got %q", got)
			}
			//nolint:errcheck
			json.NewEncoder(w).Encode([]Record{
				{ID: 1, Name: "www.example.com", Type: "A", Value: "1.2.3.4", TTL: 300},
				{ID: 2, Name: "www.example.com", Type: "AAAA", Value: "::1", TTL: 300},
			})
		}))
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL))
		records, err := client.ListRecords(context.Background(), "www.example.com", "")
		if err != nil {
			t.Fatalf("ListRecords failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
		if records[0].Type != "A" || records[0].Value != "1.2.3.4" {
			t.Errorf("unexpected first record: %+v", records[0])
		}
	})

	t.Run("type filter in query", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("type"); got != "TXT" {
				t.Errorf("expected type=TXT, got %q", got)
			}
			//nolint:errcheck
			json.NewEncoder(w).Encode([]Record{})
		}))
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL))
		records, err := client.ListRecords(context.Background(), "www.example.com", "TXT")
		if err != nil {
			t.Fatalf("ListRecords failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		client := clientWithResponse(http.StatusUnauthorized, nil)
		_, err := client.ListRecords(context.Background(), "www.example.com", "")
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		client := clientWithResponse(http.StatusNotFound, nil)
		_, err := client.ListRecords(context.Background(), "missing.example.com", "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid json response", func(t *testing.T) {
		t.Parallel()
		client := clientWithResponse(http.StatusOK, []byte("{not json"))
		_, err := client.ListRecords(context.Background(), "www.example.com", "")
		if err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			//nolint:errcheck
			json.NewEncoder(w).Encode([]Record{})
		}))
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := client.ListRecords(ctx, "www.example.com", ""); err == nil {
			t.Error("expected error with cancelled context")
		}
	})
}

func TestCreateRecord(t *testing.T) {
	t.Parallel()
	t.Run("success", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if got := r.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("expected JSON content type, got %q", got)
			}
			var rec Record
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
			rec.ID = 7
			w.WriteHeader(http.StatusCreated)
			//nolint:errcheck
			json.NewEncoder(w).Encode(rec)
		}))
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL))
		created, err := client.CreateRecord(context.Background(), "www.example.com", Record{
			Name:  "www.example.com",
			Type:  "A",
			Value: "1.2.3.4",
			TTL:   300,
		})
		if err != nil {
			t.Fatalf("CreateRecord failed: %v", err)
		}
		if created.ID != 7 || created.Value != "1.2.3.4" {
			t.Errorf("unexpected created record: %+v", created)
		}
	})

	t.Run("structured api error", func(t *testing.T) {
		t.Parallel()
		body := []byte(`{"error":"validation_failed","message":"record value is not a valid IPv4 address"}`)
		client := clientWithResponse(http.StatusBadRequest, body)

		_, err := client.CreateRecord(context.Background(), "www.example.com", Record{Type: "A", Value: "bogus"})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest || apiErr.ErrorKey != "validation_failed" {
			t.Errorf("unexpected APIError: %+v", apiErr)
		}
	})

	t.Run("unstructured error body", func(t *testing.T) {
		t.Parallel()
		client := clientWithResponse(http.StatusBadGateway, []byte("upstream exploded"))
		_, err := client.CreateRecord(context.Background(), "www.example.com", Record{Type: "A", Value: "1.2.3.4"})
		if err == nil {
			t.Fatal("expected error")
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			t.Errorf("expected generic error for unstructured body, got APIError %+v", apiErr)
		}
	})
}

func TestUpdateRecord(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		var rec Record
		//nolint:errcheck
		json.NewDecoder(r.Body).Decode(&rec)
		//nolint:errcheck
		json.NewEncoder(w).Encode(rec)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	updated, err := client.UpdateRecord(context.Background(), "www.example.com", Record{
		Type:  "A",
		Value: "5.6.7.8",
	})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if updated.Value != "5.6.7.8" {
		t.Errorf("unexpected updated record: %+v", updated)
	}
}

func TestDeleteRecord(t *testing.T) {
	t.Parallel()
	t.Run("success", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			if got := r.URL.Query().Get("type"); got != "CNAME" {
				t.Errorf("expected type=CNAME, got %q", got)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL))
		if err := client.DeleteRecord(context.Background(), "alias.example.com", "CNAME"); err != nil {
			t.Fatalf("DeleteRecord failed: %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		client := clientWithResponse(http.StatusNotFound, nil)
		err := client.DeleteRecord(context.Background(), "missing.example.com", "A")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
