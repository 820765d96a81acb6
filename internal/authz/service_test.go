package authz

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zonegate/zonegate/internal/policy"
	"github.com/zonegate/zonegate/internal/storage"
	"github.com/zonegate/zonegate/internal/testutil/mockstore"
	"github.com/zonegate/zonegate/internal/token"
)

// fixture builds a bearer string plus the stored token/realm rows it
// should resolve to.
type fixture struct {
	bearer string
	tok    *policy.Token
	realm  *policy.Realm
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	secret, err := token.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	alias, err := token.NewAccountAlias()
	if err != nil {
		t.Fatalf("NewAccountAlias failed: %v", err)
	}
	hash, err := token.Hash(secret)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	approvedAt := time.Now().Add(-time.Hour)
	return &fixture{
		bearer: token.Format(alias, secret),
		tok: &policy.Token{
			ID:        42,
			RealmID:   7,
			Name:      "ddns",
			Prefix:    token.LookupPrefix(secret),
			Hash:      hash,
			IsActive:  true,
			CreatedAt: approvedAt,
		},
		realm: &policy.Realm{
			ID:                 7,
			AccountID:          1,
			Domain:             "example.com",
			Type:               policy.RealmTypeSubdomain,
			AllowedRecordTypes: []string{"A", "AAAA"},
			AllowedOperations:  []policy.Operation{policy.OperationRead, policy.OperationUpdate},
			Status:             policy.RealmStatusApproved,
			CreatedAt:          approvedAt,
			ApprovedAt:         &approvedAt,
		},
	}
}

func (f *fixture) store() *mockstore.MockStorage {
	return &mockstore.MockStorage{
		FindTokensByPrefixFunc: func(_ context.Context, prefix string) ([]*policy.Token, error) {
			if prefix == f.tok.Prefix {
				return []*policy.Token{f.tok}, nil
			}
			return nil, nil
		},
		GetRealmFunc: func(_ context.Context, id int64) (*policy.Realm, error) {
			if id == f.realm.ID {
				return f.realm, nil
			}
			return nil, storage.ErrNotFound
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestAuthorize_Allowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	store := f.store()

	var usedID int64
	store.RecordTokenUsageFunc = func(_ context.Context, tokenID int64, _ time.Time) error {
		usedID = tokenID
		return nil
	}

	svc := NewService(store, discardLogger())
	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !verdict.Allowed || verdict.Reason != policy.ReasonAllowed {
		t.Fatalf("verdict = %+v, want allowed", verdict)
	}
	if usedID != f.tok.ID {
		t.Errorf("usage recorded for token %d, want %d", usedID, f.tok.ID)
	}
}

func TestAuthorize_MalformedBearer(t *testing.T) {
	t.Parallel()
	store := &mockstore.MockStorage{
		FindTokensByPrefixFunc: func(context.Context, string) ([]*policy.Token, error) {
			t.Error("storage must not be queried for a malformed bearer")
			return nil, nil
		},
	}
	svc := NewService(store, discardLogger())

	for _, bearer := range []string{"", "garbage", "zg_short_x", "xx_aaaaaaaaaaaaaaaa_" + repeat('a', 64)} {
		verdict, err := svc.Authorize(context.Background(), bearer,
			"vpn.example.com", "A", "update", "203.0.113.5")
		if err != nil {
			t.Errorf("bearer %q: unexpected error %v", bearer, err)
		}
		if verdict.Allowed || verdict.Reason != policy.ReasonInvalidToken {
			t.Errorf("bearer %q: verdict = %+v, want InvalidToken", bearer, verdict)
		}
	}
}

func TestAuthorize_UnknownToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewService(&mockstore.MockStorage{}, discardLogger())

	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Reason != policy.ReasonInvalidToken {
		t.Errorf("verdict = %+v, want InvalidToken", verdict)
	}
}

func TestAuthorize_WrongSecretSamePrefix(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	store := f.store()

	// A colliding candidate whose hash does not match the presented secret.
	otherSecret, _ := token.GenerateSecret()
	otherHash, err := token.Hash(otherSecret)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	f.tok.Hash = otherHash

	svc := NewService(store, discardLogger())
	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Reason != policy.ReasonInvalidToken {
		t.Errorf("verdict = %+v, want InvalidToken", verdict)
	}
}

func TestAuthorize_LookupFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	boom := errors.New("database is locked")
	store := &mockstore.MockStorage{
		FindTokensByPrefixFunc: func(context.Context, string) ([]*policy.Token, error) {
			return nil, boom
		},
	}
	svc := NewService(store, discardLogger())

	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if verdict.Allowed || verdict.Reason != policy.ReasonInternalError {
		t.Errorf("verdict = %+v, want InternalError", verdict)
	}
}

func TestAuthorize_RealmLoadFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	store := f.store()
	store.GetRealmFunc = func(context.Context, int64) (*policy.Realm, error) {
		return nil, storage.ErrNotFound
	}
	svc := NewService(store, discardLogger())

	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if err == nil {
		t.Error("expected error when realm cannot be loaded")
	}
	if verdict.Reason != policy.ReasonInternalError {
		t.Errorf("verdict = %+v, want InternalError", verdict)
	}
}

func TestAuthorize_UsageWriteFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	store := f.store()
	boom := errors.New("disk I/O error")
	store.RecordTokenUsageFunc = func(context.Context, int64, time.Time) error {
		return boom
	}
	svc := NewService(store, discardLogger())

	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if verdict.Allowed || verdict.Reason != policy.ReasonInternalError {
		t.Errorf("verdict = %+v, want InternalError (fail closed)", verdict)
	}
}

func TestAuthorize_DeniedSkipsUsageWrite(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.realm.Status = policy.RealmStatusPending
	store := f.store()
	store.RecordTokenUsageFunc = func(context.Context, int64, time.Time) error {
		t.Error("usage must not be recorded for a denied request")
		return nil
	}
	svc := NewService(store, discardLogger())

	verdict, err := svc.Authorize(context.Background(), f.bearer,
		"vpn.example.com", "A", "update", "203.0.113.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Reason != policy.ReasonRealmNotApproved {
		t.Errorf("verdict = %+v, want RealmNotApproved", verdict)
	}
}

func TestNewService_NilStoragePanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on nil storage")
		}
	}()
	NewService(nil, discardLogger())
}

func repeat(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

// TestAuthorize_DenialLogsMaskedBearer checks that invalid-token denials log
// a masked bearer, never the raw secret.
func TestAuthorize_DenialLogsMaskedBearer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewService(f.store(), logger)

	unknown := "zg_" + repeat('a', 16) + "_" + repeat('b', 64)
	verdict, err := svc.Authorize(context.Background(), unknown, "vpn.example.com", "A", "update", "203.0.113.5")
	if err != nil || verdict.Reason != policy.ReasonInvalidToken {
		t.Fatalf("verdict = %+v, err = %v, want InvalidToken", verdict, err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "zg_"+repeat('a', 16)+"_****bbbb") {
		t.Errorf("denial log missing masked bearer: %s", logged)
	}
	if strings.Contains(logged, repeat('b', 64)) {
		t.Errorf("denial log leaks the raw secret: %s", logged)
	}

	// Malformed bearers are fully redacted.
	buf.Reset()
	if _, err := svc.Authorize(context.Background(), "garbage", "vpn.example.com", "A", "update", "203.0.113.5"); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Errorf("malformed-bearer log not redacted: %s", buf.String())
	}
}
