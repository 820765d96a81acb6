// Package authz is the request-time authorization entry point: it resolves
// a presented bearer token to its stored row, evaluates the realm's policy,
// and records usage on success.
package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/zonegate/zonegate/internal/logging"
	"github.com/zonegate/zonegate/internal/metrics"
	"github.com/zonegate/zonegate/internal/policy"
	"github.com/zonegate/zonegate/internal/token"
)

// Storage is the narrow port the service needs. Implemented by
// storage.SQLiteStorage; tests substitute an in-memory fake.
type Storage interface {
	FindTokensByPrefix(ctx context.Context, prefix string) ([]*policy.Token, error)
	GetRealm(ctx context.Context, id int64) (*policy.Realm, error)
	RecordTokenUsage(ctx context.Context, tokenID int64, usedAt time.Time) error
}

// Service combines token lookup, policy evaluation, and usage accounting.
// It holds no mutable state; a single instance serves concurrent requests.
type Service struct {
	storage   Storage
	evaluator *policy.Evaluator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the authorization service. A nil storage is a wiring
// bug and panics immediately rather than failing per-request.
func NewService(storage Storage, logger *slog.Logger) *Service {
	if storage == nil {
		panic("authz: nil storage")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:   storage,
		evaluator: policy.NewEvaluator(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Authorize decides whether the presented bearer may perform the requested
// DNS operation. Malformed or unknown tokens are ordinary denials, not
// errors; a non-nil error accompanies only Deny(InternalError) and means a
// storage failure prevented a positive decision.
func (s *Service) Authorize(ctx context.Context, rawBearer, hostname, recordType, operation, sourceIP string) (policy.Verdict, error) {
	verdict, err := s.authorize(ctx, rawBearer, hostname, recordType, operation, sourceIP)
	metrics.RecordVerdict(string(verdict.Reason))
	return verdict, err
}

func (s *Service) authorize(ctx context.Context, rawBearer, hostname, recordType, operation, sourceIP string) (policy.Verdict, error) {
	alias, secret, err := token.Parse(rawBearer)
	if err != nil {
		s.logger.Info("authorization denied",
			"reason", policy.ReasonInvalidToken,
			"bearer", logging.MaskBearer(rawBearer))
		return policy.Deny(policy.ReasonInvalidToken), nil
	}

	// Two-phase lookup: the indexed prefix narrows to a handful of
	// candidates, then the slow hash runs only against those.
	candidates, err := s.storage.FindTokensByPrefix(ctx, token.LookupPrefix(secret))
	if err != nil {
		s.logger.Error("token lookup failed", "error", err)
		return policy.Deny(policy.ReasonInternalError), err
	}

	var matched *policy.Token
	for _, cand := range candidates {
		if token.Verify(secret, cand.Hash) {
			matched = cand
			break
		}
	}
	if matched == nil {
		s.logger.Info("authorization denied",
			"reason", policy.ReasonInvalidToken,
			"account_alias", alias,
			"bearer", logging.MaskBearer(rawBearer))
		return policy.Deny(policy.ReasonInvalidToken), nil
	}

	realm, err := s.storage.GetRealm(ctx, matched.RealmID)
	if err != nil {
		// A token whose realm cannot be loaded is unverifiable. Fail closed.
		s.logger.Error("realm load failed", "token_id", matched.ID, "realm_id", matched.RealmID, "error", err)
		return policy.Deny(policy.ReasonInternalError), err
	}

	req := policy.Request{
		Hostname:   hostname,
		RecordType: recordType,
		Operation:  policy.Operation(operation),
		SourceIP:   sourceIP,
	}
	now := s.now()
	verdict := s.evaluator.Evaluate(realm, matched, req, now)
	if !verdict.Allowed {
		s.logger.Info("authorization denied",
			"reason", verdict.Reason,
			"account_alias", alias,
			"token_id", matched.ID,
			"realm_id", realm.ID,
			"hostname", hostname,
			"record_type", recordType,
			"operation", operation)
		return verdict, nil
	}

	// Usage is measured at authorization time, before the caller performs
	// the upstream operation.
	if err := s.storage.RecordTokenUsage(ctx, matched.ID, now); err != nil {
		s.logger.Error("usage accounting failed", "token_id", matched.ID, "error", err)
		metrics.RecordUsageWriteFailure()
		return policy.Deny(policy.ReasonInternalError), err
	}

	s.logger.Debug("authorization allowed",
		"account_alias", alias,
		"token_id", matched.ID,
		"realm_id", realm.ID,
		"hostname", hostname,
		"record_type", recordType,
		"operation", operation)
	return policy.Allow(), nil
}
