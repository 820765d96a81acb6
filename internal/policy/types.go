// Package policy defines the authorization data model: realms (domain-scoped
// grants) and tokens (bearer credentials scoped to one realm), plus the pure
// matching and evaluation logic that turns a request into a verdict.
package policy

import (
	"strings"
	"time"
)

// RealmType controls how a realm's domain is matched against requested
// hostnames.
type RealmType string

const (
	// RealmTypeHost matches only the exact domain.
	RealmTypeHost RealmType = "host"
	// RealmTypeSubdomain matches the domain itself and all descendants.
	RealmTypeSubdomain RealmType = "subdomain"
	// RealmTypeSubdomainOnly matches descendants but never the apex.
	RealmTypeSubdomainOnly RealmType = "subdomain_only"
)

// RealmStatus is the admin-approval lifecycle state of a realm.
type RealmStatus string

const (
	RealmStatusPending  RealmStatus = "pending"
	RealmStatusApproved RealmStatus = "approved"
	RealmStatusRejected RealmStatus = "rejected"
	RealmStatusRevoked  RealmStatus = "revoked"
)

// Operation is a DNS management operation a realm or token may allow.
type Operation string

const (
	OperationRead   Operation = "read"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Operations lists every valid operation.
var Operations = []Operation{OperationRead, OperationCreate, OperationUpdate, OperationDelete}

// Realm is a grant of DNS-management scope to an account over a domain.
// A realm is the unit of admin approval; revocation is a status change,
// never a row deletion, so audit history survives.
type Realm struct {
	ID                 int64
	AccountID          int64
	Domain             string // FQDN, lowercase-normalized
	Type               RealmType
	AllowedRecordTypes []string    // never empty for an approved realm
	AllowedOperations  []Operation // never empty for an approved realm
	Status             RealmStatus
	CreatedAt          time.Time
	ApprovedAt         *time.Time
}

// Token is a bearer credential scoped to exactly one realm, optionally
// narrowing its permissions. The raw secret is returned to the caller once
// at creation; only the prefix and the one-way hash are ever stored.
type Token struct {
	ID      int64
	RealmID int64
	Name    string // unique per realm
	Prefix  string // non-secret lookup key, first chars of the secret
	Hash    string // bcrypt-over-digest of the full secret

	// Nil means "inherit the realm's list"; non-nil values were checked to
	// be subsets of the realm's lists at creation/edit time.
	AllowedRecordTypes []string
	AllowedOperations  []Operation

	// Nil or empty means no IP restriction.
	AllowedIPRanges []string

	ExpiresAt  *time.Time
	IsActive   bool
	RevokedAt  *time.Time
	LastUsedAt *time.Time
	UseCount   int64
	CreatedAt  time.Time
}

// Expired reports whether the token's expiry has passed. The boundary is
// exclusive: a token whose expiry equals now is already expired.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Revoked reports whether the token has been explicitly revoked. Revoked is
// terminal: a revoked token can only be replaced, never reactivated.
func (t *Token) Revoked() bool {
	return t.RevokedAt != nil
}

// NormalizeRecordTypes upper-cases and trims a record-type set. Evaluation
// compares requested types case-sensitively, so every stored set goes
// through this at creation/edit time. Nil stays nil (inherit).
func NormalizeRecordTypes(types []string) []string {
	if types == nil {
		return nil
	}
	out := make([]string, 0, len(types))
	for _, rt := range types {
		if rt = strings.ToUpper(strings.TrimSpace(rt)); rt != "" {
			out = append(out, rt)
		}
	}
	return out
}

// EffectiveRecordTypes returns the record-type set actually enforced for
// the token: its own restriction if present, else the realm's.
func EffectiveRecordTypes(tokenTypes, realmTypes []string) []string {
	if tokenTypes == nil {
		return realmTypes
	}
	return tokenTypes
}

// EffectiveOperations returns the operation set actually enforced for the
// token: its own restriction if present, else the realm's.
func EffectiveOperations(tokenOps, realmOps []Operation) []Operation {
	if tokenOps == nil {
		return realmOps
	}
	return tokenOps
}
