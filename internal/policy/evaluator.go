package policy

import (
	"log/slog"
	"time"
)

// Reason is the machine-readable explanation attached to a verdict. The
// set of reasons is part of the external interface (logs, error bodies).
type Reason string

const (
	ReasonAllowed              Reason = "Allowed"
	ReasonInvalidToken         Reason = "InvalidToken"
	ReasonRealmNotApproved     Reason = "RealmNotApproved"
	ReasonTokenInactive        Reason = "TokenInactive"
	ReasonTokenExpired         Reason = "TokenExpired"
	ReasonOutOfScope           Reason = "OutOfScope"
	ReasonRecordTypeNotAllowed Reason = "RecordTypeNotAllowed"
	ReasonOperationNotAllowed  Reason = "OperationNotAllowed"
	ReasonIPNotAllowed         Reason = "IPNotAllowed"
	ReasonInternalError        Reason = "InternalError"
)

// Verdict is the outcome of one authorization check.
type Verdict struct {
	Allowed bool
	Reason  Reason
}

// Allow is the single allowing verdict.
func Allow() Verdict {
	return Verdict{Allowed: true, Reason: ReasonAllowed}
}

// Deny constructs a denying verdict with the given reason.
func Deny(reason Reason) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}

// Request is the tuple evaluated against a resolved (token, realm) pair.
type Request struct {
	Hostname   string
	RecordType string
	Operation  Operation
	SourceIP   string
}

// Evaluator computes effective decisions for resolved (token, realm) pairs.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. A nil logger falls back to the default.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate runs the decision sequence for one request. Each step
// short-circuits to a deny with a specific reason; the ordering exists for
// diagnostics only — the net effect is allow only when every step passes.
func (e *Evaluator) Evaluate(realm *Realm, tok *Token, req Request, now time.Time) Verdict {
	// 1. Realm must be approved.
	if realm.Status != RealmStatusApproved {
		return Deny(ReasonRealmNotApproved)
	}

	// 2. Token must be active, unrevoked, and unexpired. Expired and
	// revoked are both terminal but stay distinguishable in the reason.
	if !tok.IsActive || tok.Revoked() {
		return Deny(ReasonTokenInactive)
	}
	if tok.Expired(now) {
		return Deny(ReasonTokenExpired)
	}

	// 3. Hostname must be inside the realm's domain scope.
	if !realm.Matches(req.Hostname) {
		return Deny(ReasonOutOfScope)
	}

	// 4. Requested record type must be in the effective set.
	if !containsString(EffectiveRecordTypes(tok.AllowedRecordTypes, realm.AllowedRecordTypes), req.RecordType) {
		return Deny(ReasonRecordTypeNotAllowed)
	}

	// 5. Requested operation must be in the effective set.
	if !containsOperation(EffectiveOperations(tok.AllowedOperations, realm.AllowedOperations), req.Operation) {
		return Deny(ReasonOperationNotAllowed)
	}

	// 6. If the token carries IP restrictions, the source IP must match at
	// least one entry. Unparsable stored entries are a configuration error:
	// logged and skipped, which can only make the check stricter.
	if len(tok.AllowedIPRanges) > 0 && !e.matchIP(tok, req.SourceIP) {
		return Deny(ReasonIPNotAllowed)
	}

	return Allow()
}

func (e *Evaluator) matchIP(tok *Token, sourceIP string) bool {
	for _, entry := range tok.AllowedIPRanges {
		ok, err := MatchIPRange(entry, sourceIP)
		if err != nil {
			e.logger.Warn("skipping unusable IP range entry",
				"token_id", tok.ID, "entry", entry, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsOperation(set []Operation, v Operation) bool {
	for _, o := range set {
		if o == v {
			return true
		}
	}
	return false
}
