// Package admin provides the administrative JSON API: account registration,
// realm lifecycle, and token issuance.
package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/zonegate/zonegate/internal/policy"
	"github.com/zonegate/zonegate/internal/storage"
)

// Storage interface for admin operations
type Storage interface {
	// Health check
	Ping(ctx context.Context) error

	// Realm lifecycle
	CreateRealm(ctx context.Context, r *policy.Realm) (*policy.Realm, error)
	GetRealm(ctx context.Context, id int64) (*policy.Realm, error)
	ListRealms(ctx context.Context, accountID int64) ([]*policy.Realm, error)
	ApproveRealm(ctx context.Context, id int64, approvedAt time.Time) error
	RejectRealm(ctx context.Context, id int64) error
	RevokeRealm(ctx context.Context, id int64, revokedAt time.Time) error

	// Token lifecycle
	CreateToken(ctx context.Context, t *policy.Token) (*policy.Token, error)
	GetTokenByID(ctx context.Context, id int64) (*policy.Token, error)
	ListTokensByRealm(ctx context.Context, realmID int64) ([]*policy.Token, error)
	UpdateTokenScoping(ctx context.Context, t *policy.Token) error
	RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error

	// Accounts
	CreateAccount(ctx context.Context, name, alias string) (*storage.Account, error)
	GetAccount(ctx context.Context, id int64) (*storage.Account, error)
	GetAccountByName(ctx context.Context, name string) (*storage.Account, error)
}

// Handler provides admin endpoints
type Handler struct {
	storage  Storage
	logger   *slog.Logger
	logLevel *slog.LevelVar
	adminKey string
}

// NewHandler creates an admin handler. adminKey protects every /api route.
func NewHandler(storage Storage, adminKey string, logLevel *slog.LevelVar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}

	return &Handler{
		storage:  storage,
		logger:   logger,
		logLevel: logLevel,
		adminKey: adminKey,
	}
}
