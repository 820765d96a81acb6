package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zonegate/zonegate/internal/policy"
)

// CreateToken inserts a new token row and returns it with its assigned ID.
// Returns ErrDuplicate when the name collides within the realm (or, under
// astronomically unlikely circumstances, the hash collides globally).
func (s *SQLiteStorage) CreateToken(ctx context.Context, tok *policy.Token) (*policy.Token, error) {
	recordTypes, err := marshalNullable(tok.AllowedRecordTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record types: %w", err)
	}
	operations, err := marshalNullableOps(tok.AllowedOperations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operations: %w", err)
	}
	ipRanges, err := marshalNullable(tok.AllowedIPRanges)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal IP ranges: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (realm_id, name, token_prefix, token_hash,
		   allowed_record_types, allowed_operations, allowed_ip_ranges,
		   expires_at, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tok.RealmID, tok.Name, tok.Prefix, tok.Hash,
		recordTypes, operations, ipRanges,
		nullableTime(tok.ExpiresAt), tok.IsActive, tok.CreatedAt.UTC())
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	created := *tok
	created.ID = id
	return &created, nil
}

// GetTokenByID retrieves a token by ID. Returns ErrNotFound if it doesn't
// exist.
func (s *SQLiteStorage) GetTokenByID(ctx context.Context, id int64) (*policy.Token, error) {
	row := s.db.QueryRowContext(ctx, selectToken+` WHERE id = ?`, id)
	tok, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tok, nil
}

// FindTokensByPrefix returns every token whose stored lookup prefix matches.
// The expected result set size is 0 or 1; callers iterate all candidates and
// verify each against the presented secret.
func (s *SQLiteStorage) FindTokensByPrefix(ctx context.Context, prefix string) ([]*policy.Token, error) {
	rows, err := s.db.QueryContext(ctx, selectToken+` WHERE token_prefix = ?`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens by prefix: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := make([]*policy.Token, 0, 1)
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}
	return tokens, nil
}

// ListTokensByRealm returns all tokens under a realm, newest first.
func (s *SQLiteStorage) ListTokensByRealm(ctx context.Context, realmID int64) ([]*policy.Token, error) {
	rows, err := s.db.QueryContext(ctx,
		selectToken+` WHERE realm_id = ? ORDER BY created_at DESC, id DESC`, realmID)
	if err != nil {
		return nil, fmt.Errorf("failed to query realm tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := make([]*policy.Token, 0)
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}
	return tokens, nil
}

// UpdateTokenScoping replaces the mutable scoping fields of a token: name,
// narrowing sets, IP ranges, expiry, and the active flag. The secret itself
// (prefix and hash) is immutable; rotation is revoke-old-create-new.
func (s *SQLiteStorage) UpdateTokenScoping(ctx context.Context, tok *policy.Token) error {
	recordTypes, err := marshalNullable(tok.AllowedRecordTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal record types: %w", err)
	}
	operations, err := marshalNullableOps(tok.AllowedOperations)
	if err != nil {
		return fmt.Errorf("failed to marshal operations: %w", err)
	}
	ipRanges, err := marshalNullable(tok.AllowedIPRanges)
	if err != nil {
		return fmt.Errorf("failed to marshal IP ranges: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET name = ?, allowed_record_types = ?, allowed_operations = ?,
		   allowed_ip_ranges = ?, expires_at = ?, is_active = ?
		 WHERE id = ? AND revoked_at IS NULL`,
		tok.Name, recordTypes, operations, ipRanges,
		nullableTime(tok.ExpiresAt), tok.IsActive, tok.ID)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update token: %w", err)
	}
	return requireRowsAffected(result)
}

// RevokeToken deactivates a token and stamps revoked_at. Revocation is
// terminal; revoking an already revoked token returns ErrNotFound.
func (s *SQLiteStorage) RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET is_active = FALSE, revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		revokedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return requireRowsAffected(result)
}

// RecordTokenUsage increments use_count and advances last_used_at, both in
// one UPDATE so concurrent authorizations never lose counts. last_used_at
// only moves forward: the newest timestamp wins regardless of write order.
func (s *SQLiteStorage) RecordTokenUsage(ctx context.Context, id int64, usedAt time.Time) error {
	ts := usedAt.UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET use_count = use_count + 1,
		   last_used_at = CASE
		     WHEN last_used_at IS NULL OR last_used_at < ? THEN ?
		     ELSE last_used_at
		   END
		 WHERE id = ?`,
		ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to record token usage: %w", err)
	}
	return requireRowsAffected(result)
}

const selectToken = `SELECT id, realm_id, name, token_prefix, token_hash,
	allowed_record_types, allowed_operations, allowed_ip_ranges,
	expires_at, is_active, revoked_at, last_used_at, use_count, created_at
	FROM tokens`

func scanToken(row rowScanner) (*policy.Token, error) {
	var (
		tok         policy.Token
		recordTypes sql.NullString
		operations  sql.NullString
		ipRanges    sql.NullString
		expiresAt   sql.NullTime
		revokedAt   sql.NullTime
		lastUsedAt  sql.NullTime
	)

	err := row.Scan(&tok.ID, &tok.RealmID, &tok.Name, &tok.Prefix, &tok.Hash,
		&recordTypes, &operations, &ipRanges,
		&expiresAt, &tok.IsActive, &revokedAt, &lastUsedAt, &tok.UseCount, &tok.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	if recordTypes.Valid {
		if err := json.Unmarshal([]byte(recordTypes.String), &tok.AllowedRecordTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record types: %w", err)
		}
	}
	if operations.Valid {
		if err := json.Unmarshal([]byte(operations.String), &tok.AllowedOperations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operations: %w", err)
		}
	}
	if ipRanges.Valid {
		if err := json.Unmarshal([]byte(ipRanges.String), &tok.AllowedIPRanges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal IP ranges: %w", err)
		}
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		tok.ExpiresAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		tok.RevokedAt = &t
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		tok.LastUsedAt = &t
	}
	return &tok, nil
}

// marshalNullable stores nil slices as SQL NULL so "inherit" and "empty"
// stay distinguishable in the database.
func marshalNullable(set []string) (any, error) {
	if set == nil {
		return nil, nil
	}
	b, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalNullableOps(set []policy.Operation) (any, error) {
	if set == nil {
		return nil, nil
	}
	b, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
