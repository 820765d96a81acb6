package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zonegate/zonegate/internal/policy"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRealm(accountID int64) *policy.Realm {
	return &policy.Realm{
		AccountID:          accountID,
		Domain:             "example.com",
		Type:               policy.RealmTypeSubdomain,
		AllowedRecordTypes: []string{"A", "AAAA"},
		AllowedOperations:  []policy.Operation{policy.OperationRead, policy.OperationUpdate},
		Status:             policy.RealmStatusPending,
		CreatedAt:          time.Now().UTC(),
	}
}

func testToken(realmID int64, name, prefix, hash string) *policy.Token {
	return &policy.Token{
		RealmID:   realmID,
		Name:      name,
		Prefix:    prefix,
		Hash:      hash,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
}

// TestRealmLifecycle exercises create, fetch, approve, and the uniqueness
// constraint on (account, domain, realm_type).
func TestRealmLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	created, err := s.CreateRealm(ctx, testRealm(1))
	if err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned ID")
	}

	got, err := s.GetRealm(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRealm failed: %v", err)
	}
	if got.Domain != "example.com" || got.Type != policy.RealmTypeSubdomain {
		t.Errorf("unexpected realm: %+v", got)
	}
	if got.Status != policy.RealmStatusPending || got.ApprovedAt != nil {
		t.Errorf("new realm should be pending with no approval stamp: %+v", got)
	}
	if len(got.AllowedRecordTypes) != 2 || len(got.AllowedOperations) != 2 {
		t.Errorf("permission sets did not round-trip: %+v", got)
	}

	// Duplicate (account, domain, realm_type) is rejected.
	if _, err := s.CreateRealm(ctx, testRealm(1)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	// Same domain for another account is fine.
	if _, err := s.CreateRealm(ctx, testRealm(2)); err != nil {
		t.Errorf("realm for other account rejected: %v", err)
	}
	// Same (account, domain) with another realm_type is fine.
	hostRealm := testRealm(1)
	hostRealm.Type = policy.RealmTypeHost
	if _, err := s.CreateRealm(ctx, hostRealm); err != nil {
		t.Errorf("realm with other type rejected: %v", err)
	}

	// Approve stamps approved_at.
	approvedAt := time.Now().UTC().Truncate(time.Second)
	if err := s.ApproveRealm(ctx, created.ID, approvedAt); err != nil {
		t.Fatalf("ApproveRealm failed: %v", err)
	}
	got, err = s.GetRealm(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRealm failed: %v", err)
	}
	if got.Status != policy.RealmStatusApproved || got.ApprovedAt == nil {
		t.Errorf("approval did not stick: %+v", got)
	}

	// Approving twice fails: realm is no longer pending.
	if err := s.ApproveRealm(ctx, created.ID, approvedAt); !errors.Is(err, ErrNotFound) {
		t.Errorf("second approval: expected ErrNotFound, got %v", err)
	}

	if _, err := s.GetRealm(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing realm, got %v", err)
	}
}

// TestRejectRealm tests the pending → rejected transition.
func TestRejectRealm(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	created, err := s.CreateRealm(ctx, testRealm(1))
	if err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	if err := s.RejectRealm(ctx, created.ID); err != nil {
		t.Fatalf("RejectRealm failed: %v", err)
	}
	got, _ := s.GetRealm(ctx, created.ID)
	if got.Status != policy.RealmStatusRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}
	// A rejected realm cannot be approved afterwards.
	if err := s.ApproveRealm(ctx, created.ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("approve after reject: expected ErrNotFound, got %v", err)
	}
}

// TestRevokeRealm_CascadesToTokens tests that revoking a realm deactivates
// all its tokens in the same transaction while keeping the rows.
func TestRevokeRealm_CascadesToTokens(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	realm, err := s.CreateRealm(ctx, testRealm(1))
	if err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	if err := s.ApproveRealm(ctx, realm.ID, time.Now()); err != nil {
		t.Fatalf("ApproveRealm failed: %v", err)
	}

	tok1, err := s.CreateToken(ctx, testToken(realm.ID, "first", "aaaaaaaa", "hash-1"))
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	tok2, err := s.CreateToken(ctx, testToken(realm.ID, "second", "bbbbbbbb", "hash-2"))
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if err := s.RevokeRealm(ctx, realm.ID, time.Now()); err != nil {
		t.Fatalf("RevokeRealm failed: %v", err)
	}

	got, _ := s.GetRealm(ctx, realm.ID)
	if got.Status != policy.RealmStatusRevoked {
		t.Errorf("realm status = %s, want revoked", got.Status)
	}

	for _, id := range []int64{tok1.ID, tok2.ID} {
		tok, err := s.GetTokenByID(ctx, id)
		if err != nil {
			t.Fatalf("token row must survive revocation: %v", err)
		}
		if tok.IsActive || tok.RevokedAt == nil {
			t.Errorf("token %d not deactivated: %+v", id, tok)
		}
	}

	// Revoking a non-approved realm is a no-op error.
	if err := s.RevokeRealm(ctx, realm.ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second revoke: expected ErrNotFound, got %v", err)
	}
}

// TestTokenCRUD exercises create, prefix lookup, scoping updates, and
// revocation.
func TestTokenCRUD(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	realm, err := s.CreateRealm(ctx, testRealm(1))
	if err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}

	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	spec := testToken(realm.ID, "ddns", "abc12345", "hash-abc")
	spec.AllowedRecordTypes = []string{"A"}
	spec.AllowedIPRanges = []string{"203.0.113.0/24"}
	spec.ExpiresAt = &expiry

	created, err := s.CreateToken(ctx, spec)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	got, err := s.GetTokenByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTokenByID failed: %v", err)
	}
	if got.Prefix != "abc12345" || got.Hash != "hash-abc" {
		t.Errorf("prefix/hash did not round-trip: %+v", got)
	}
	if got.AllowedRecordTypes == nil || got.AllowedRecordTypes[0] != "A" {
		t.Errorf("narrowed record types did not round-trip: %v", got.AllowedRecordTypes)
	}
	if got.AllowedOperations != nil {
		t.Errorf("nil operations must stay nil (inherit), got %v", got.AllowedOperations)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry did not round-trip: %v", got.ExpiresAt)
	}
	if got.UseCount != 0 || got.LastUsedAt != nil {
		t.Errorf("fresh token has usage: %+v", got)
	}

	// Duplicate name within the realm is rejected.
	dup := testToken(realm.ID, "ddns", "zzzzzzzz", "hash-zzz")
	if _, err := s.CreateToken(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for name collision, got %v", err)
	}

	// Prefix lookup.
	found, err := s.FindTokensByPrefix(ctx, "abc12345")
	if err != nil {
		t.Fatalf("FindTokensByPrefix failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != created.ID {
		t.Errorf("prefix lookup returned %v", found)
	}
	none, err := s.FindTokensByPrefix(ctx, "nothere1")
	if err != nil {
		t.Fatalf("FindTokensByPrefix failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty result, got %v", none)
	}

	// Scoping update: widen back to inherit and drop the IP restriction.
	got.AllowedRecordTypes = nil
	got.AllowedIPRanges = nil
	got.ExpiresAt = nil
	got.Name = "ddns-renamed"
	if err := s.UpdateTokenScoping(ctx, got); err != nil {
		t.Fatalf("UpdateTokenScoping failed: %v", err)
	}
	got, _ = s.GetTokenByID(ctx, created.ID)
	if got.AllowedRecordTypes != nil || got.AllowedIPRanges != nil || got.ExpiresAt != nil {
		t.Errorf("update did not clear fields: %+v", got)
	}
	if got.Name != "ddns-renamed" {
		t.Errorf("name = %q", got.Name)
	}

	// Revoke is terminal.
	if err := s.RevokeToken(ctx, created.ID, time.Now()); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	got, _ = s.GetTokenByID(ctx, created.ID)
	if got.IsActive || got.RevokedAt == nil {
		t.Errorf("revocation did not stick: %+v", got)
	}
	if err := s.RevokeToken(ctx, created.ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second revoke: expected ErrNotFound, got %v", err)
	}
	// Revoked tokens cannot be edited back to life.
	got.IsActive = true
	if err := s.UpdateTokenScoping(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Errorf("edit after revoke: expected ErrNotFound, got %v", err)
	}

	// Name uniqueness applies to live tokens only, so a replacement can
	// reuse the revoked token's name.
	if _, err := s.CreateToken(ctx, testToken(realm.ID, "ddns-renamed", "ffffffff", "hash-f")); err != nil {
		t.Errorf("reusing a revoked token's name failed: %v", err)
	}
}

// TestRecordTokenUsage_Monotonic tests that N concurrent usage writes
// produce exactly N increments and the newest timestamp.
func TestRecordTokenUsage_Monotonic(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	realm, err := s.CreateRealm(ctx, testRealm(1))
	if err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	tok, err := s.CreateToken(ctx, testToken(realm.ID, "busy", "cccccccc", "hash-c"))
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	const n = 32
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	latest := base.Add(time.Duration(n-1) * time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		// Timestamps deliberately arrive out of order.
		ts := base.Add(time.Duration((i*7)%n) * time.Second)
		go func(ts time.Time) {
			defer wg.Done()
			errs <- s.RecordTokenUsage(ctx, tok.ID, ts)
		}(ts)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordTokenUsage failed: %v", err)
		}
	}

	got, err := s.GetTokenByID(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetTokenByID failed: %v", err)
	}
	if got.UseCount != n {
		t.Errorf("use_count = %d, want %d", got.UseCount, n)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(latest) {
		t.Errorf("last_used_at = %v, want %v", got.LastUsedAt, latest)
	}

	if err := s.RecordTokenUsage(ctx, 9999, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("usage for missing token: expected ErrNotFound, got %v", err)
	}
}

// TestAccounts exercises the account alias registry.
func TestAccounts(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, "acme", "q3KpLm9XvTzR5wYd")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.Name != "acme" || got.Alias != "q3KpLm9XvTzR5wYd" {
		t.Errorf("unexpected account: %+v", got)
	}
	byName, err := s.GetAccountByName(ctx, "acme")
	if err != nil || byName.ID != a.ID {
		t.Errorf("GetAccountByName = %+v, %v", byName, err)
	}
	if _, err := s.CreateAccount(ctx, "acme", "otherAlias123456"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for name collision, got %v", err)
	}
	if _, err := s.GetAccountByName(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestListRealmsAndTokens tests the listing queries.
func TestListRealmsAndTokens(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	r1, err := s.CreateRealm(ctx, testRealm(1))
	if err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	other := testRealm(2)
	other.Domain = "other.net"
	if _, err := s.CreateRealm(ctx, other); err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}

	all, err := s.ListRealms(ctx, 0)
	if err != nil {
		t.Fatalf("ListRealms failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 realms, got %d", len(all))
	}
	mine, err := s.ListRealms(ctx, 1)
	if err != nil {
		t.Fatalf("ListRealms failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != r1.ID {
		t.Errorf("account filter broken: %v", mine)
	}

	if _, err := s.CreateToken(ctx, testToken(r1.ID, "one", "dddddddd", "hash-d")); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if _, err := s.CreateToken(ctx, testToken(r1.ID, "two", "eeeeeeee", "hash-e")); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	toks, err := s.ListTokensByRealm(ctx, r1.ID)
	if err != nil {
		t.Fatalf("ListTokensByRealm failed: %v", err)
	}
	if len(toks) != 2 {
		t.Errorf("expected 2 tokens, got %d", len(toks))
	}
}
