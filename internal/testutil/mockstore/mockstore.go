// Package mockstore provides a configurable mock implementation of the
// storage interfaces for testing.
//
// MockStorage uses function fields for each method, allowing tests to
// customize behavior as needed while providing sensible defaults for
// methods that aren't customized.
package mockstore

import (
	"context"
	"time"

	"github.com/zonegate/zonegate/internal/policy"
	"github.com/zonegate/zonegate/internal/storage"
)

// MockStorage is a configurable mock implementation of the realm, token,
// and account storage operations. If a function field is nil, the method
// returns a sensible default value.
type MockStorage struct {
	// Realm operations
	CreateRealmFunc  func(ctx context.Context, r *policy.Realm) (*policy.Realm, error)
	GetRealmFunc     func(ctx context.Context, id int64) (*policy.Realm, error)
	ListRealmsFunc   func(ctx context.Context, accountID int64) ([]*policy.Realm, error)
	ApproveRealmFunc func(ctx context.Context, id int64, approvedAt time.Time) error
	RejectRealmFunc  func(ctx context.Context, id int64) error
	RevokeRealmFunc  func(ctx context.Context, id int64, revokedAt time.Time) error

	// Token operations
	CreateTokenFunc        func(ctx context.Context, t *policy.Token) (*policy.Token, error)
	GetTokenByIDFunc       func(ctx context.Context, id int64) (*policy.Token, error)
	FindTokensByPrefixFunc func(ctx context.Context, prefix string) ([]*policy.Token, error)
	ListTokensByRealmFunc  func(ctx context.Context, realmID int64) ([]*policy.Token, error)
	UpdateTokenScopingFunc func(ctx context.Context, t *policy.Token) error
	RevokeTokenFunc        func(ctx context.Context, id int64, revokedAt time.Time) error
	RecordTokenUsageFunc   func(ctx context.Context, tokenID int64, usedAt time.Time) error

	// Account operations
	CreateAccountFunc    func(ctx context.Context, name, alias string) (*storage.Account, error)
	GetAccountFunc       func(ctx context.Context, id int64) (*storage.Account, error)
	GetAccountByNameFunc func(ctx context.Context, name string) (*storage.Account, error)

	// Lifecycle
	PingFunc func(ctx context.Context) error
}

// CreateRealm creates a realm.
func (m *MockStorage) CreateRealm(ctx context.Context, r *policy.Realm) (*policy.Realm, error) {
	if m.CreateRealmFunc != nil {
		return m.CreateRealmFunc(ctx, r)
	}
	out := *r
	out.ID = 1
	return &out, nil
}

// GetRealm retrieves a realm by ID.
func (m *MockStorage) GetRealm(ctx context.Context, id int64) (*policy.Realm, error) {
	if m.GetRealmFunc != nil {
		return m.GetRealmFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// ListRealms lists realms, optionally filtered by account.
func (m *MockStorage) ListRealms(ctx context.Context, accountID int64) ([]*policy.Realm, error) {
	if m.ListRealmsFunc != nil {
		return m.ListRealmsFunc(ctx, accountID)
	}
	return []*policy.Realm{}, nil
}

// ApproveRealm transitions a pending realm to approved.
func (m *MockStorage) ApproveRealm(ctx context.Context, id int64, approvedAt time.Time) error {
	if m.ApproveRealmFunc != nil {
		return m.ApproveRealmFunc(ctx, id, approvedAt)
	}
	return nil
}

// RejectRealm transitions a pending realm to rejected.
func (m *MockStorage) RejectRealm(ctx context.Context, id int64) error {
	if m.RejectRealmFunc != nil {
		return m.RejectRealmFunc(ctx, id)
	}
	return nil
}

// RevokeRealm transitions an approved realm to revoked.
func (m *MockStorage) RevokeRealm(ctx context.Context, id int64, revokedAt time.Time) error {
	if m.RevokeRealmFunc != nil {
		return m.RevokeRealmFunc(ctx, id, revokedAt)
	}
	return nil
}

// CreateToken creates a token.
func (m *MockStorage) CreateToken(ctx context.Context, t *policy.Token) (*policy.Token, error) {
	if m.CreateTokenFunc != nil {
		return m.CreateTokenFunc(ctx, t)
	}
	out := *t
	out.ID = 1
	return &out, nil
}

// GetTokenByID retrieves a token by ID.
func (m *MockStorage) GetTokenByID(ctx context.Context, id int64) (*policy.Token, error) {
	if m.GetTokenByIDFunc != nil {
		return m.GetTokenByIDFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// FindTokensByPrefix retrieves tokens sharing a lookup prefix.
func (m *MockStorage) FindTokensByPrefix(ctx context.Context, prefix string) ([]*policy.Token, error) {
	if m.FindTokensByPrefixFunc != nil {
		return m.FindTokensByPrefixFunc(ctx, prefix)
	}
	return []*policy.Token{}, nil
}

// ListTokensByRealm lists the tokens of a realm.
func (m *MockStorage) ListTokensByRealm(ctx context.Context, realmID int64) ([]*policy.Token, error) {
	if m.ListTokensByRealmFunc != nil {
		return m.ListTokensByRealmFunc(ctx, realmID)
	}
	return []*policy.Token{}, nil
}

// UpdateTokenScoping updates a token's mutable scoping fields.
func (m *MockStorage) UpdateTokenScoping(ctx context.Context, t *policy.Token) error {
	if m.UpdateTokenScopingFunc != nil {
		return m.UpdateTokenScopingFunc(ctx, t)
	}
	return nil
}

// RevokeToken deactivates a token.
func (m *MockStorage) RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, id, revokedAt)
	}
	return nil
}

// RecordTokenUsage records one authorized use of a token.
func (m *MockStorage) RecordTokenUsage(ctx context.Context, tokenID int64, usedAt time.Time) error {
	if m.RecordTokenUsageFunc != nil {
		return m.RecordTokenUsageFunc(ctx, tokenID, usedAt)
	}
	return nil
}

// CreateAccount creates an account.
func (m *MockStorage) CreateAccount(ctx context.Context, name, alias string) (*storage.Account, error) {
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, name, alias)
	}
	return &storage.Account{ID: 1, Name: name, Alias: alias, CreatedAt: time.Now()}, nil
}

// GetAccount retrieves an account by ID.
func (m *MockStorage) GetAccount(ctx context.Context, id int64) (*storage.Account, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// GetAccountByName retrieves an account by its unique name.
func (m *MockStorage) GetAccountByName(ctx context.Context, name string) (*storage.Account, error) {
	if m.GetAccountByNameFunc != nil {
		return m.GetAccountByNameFunc(ctx, name)
	}
	return nil, storage.ErrNotFound
}

// Ping checks storage health.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
