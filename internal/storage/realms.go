package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zonegate/zonegate/internal/policy"
)

// CreateRealm inserts a new realm and returns it with its assigned ID.
// Returns ErrDuplicate if a realm for the same (account, domain, realm_type)
// already exists.
func (s *SQLiteStorage) CreateRealm(ctx context.Context, realm *policy.Realm) (*policy.Realm, error) {
	recordTypes, err := json.Marshal(realm.AllowedRecordTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record types: %w", err)
	}
	operations, err := json.Marshal(realm.AllowedOperations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operations: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO realms (account_id, domain, realm_type, allowed_record_types, allowed_operations, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		realm.AccountID, realm.Domain, string(realm.Type),
		string(recordTypes), string(operations), string(realm.Status),
		realm.CreatedAt.UTC())
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create realm: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	created := *realm
	created.ID = id
	return &created, nil
}

// GetRealm retrieves a realm by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStorage) GetRealm(ctx context.Context, id int64) (*policy.Realm, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, domain, realm_type, allowed_record_types, allowed_operations, status, created_at, approved_at
		 FROM realms WHERE id = ?`, id)
	return scanRealm(row)
}

// ListRealms returns all realms for an account, newest first. An accountID
// of 0 lists every realm.
func (s *SQLiteStorage) ListRealms(ctx context.Context, accountID int64) ([]*policy.Realm, error) {
	query := `SELECT id, account_id, domain, realm_type, allowed_record_types, allowed_operations, status, created_at, approved_at
		 FROM realms`
	args := []any{}
	if accountID != 0 {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query realms: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	realms := make([]*policy.Realm, 0)
	for rows.Next() {
		realm, err := scanRealm(rows)
		if err != nil {
			return nil, err
		}
		realms = append(realms, realm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realms: %w", err)
	}
	return realms, nil
}

// ApproveRealm moves a pending realm to approved and stamps approved_at.
// Only pending realms can be approved; anything else returns ErrNotFound.
func (s *SQLiteStorage) ApproveRealm(ctx context.Context, id int64, approvedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE realms SET status = ?, approved_at = ? WHERE id = ? AND status = ?`,
		string(policy.RealmStatusApproved), approvedAt.UTC(), id, string(policy.RealmStatusPending))
	if err != nil {
		return fmt.Errorf("failed to approve realm: %w", err)
	}
	return requireRowsAffected(result)
}

// RejectRealm moves a pending realm to rejected.
func (s *SQLiteStorage) RejectRealm(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE realms SET status = ? WHERE id = ? AND status = ?`,
		string(policy.RealmStatusRejected), id, string(policy.RealmStatusPending))
	if err != nil {
		return fmt.Errorf("failed to reject realm: %w", err)
	}
	return requireRowsAffected(result)
}

// RevokeRealm moves an approved realm to revoked and cascades: every token
// under the realm is deactivated and stamped revoked, in one transaction.
// The realm row itself survives for audit history.
func (s *SQLiteStorage) RevokeRealm(ctx context.Context, id int64, revokedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE realms SET status = ? WHERE id = ? AND status = ?`,
		string(policy.RealmStatusRevoked), id, string(policy.RealmStatusApproved))
	if err != nil {
		return fmt.Errorf("failed to revoke realm: %w", err)
	}
	if err := requireRowsAffected(result); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tokens SET is_active = FALSE, revoked_at = ? WHERE realm_id = ? AND revoked_at IS NULL`,
		revokedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate realm tokens: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRealm(row rowScanner) (*policy.Realm, error) {
	var (
		realm       policy.Realm
		realmType   string
		status      string
		recordTypes string
		operations  string
		approvedAt  sql.NullTime
	)

	err := row.Scan(&realm.ID, &realm.AccountID, &realm.Domain, &realmType,
		&recordTypes, &operations, &status, &realm.CreatedAt, &approvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan realm: %w", err)
	}

	realm.Type = policy.RealmType(realmType)
	realm.Status = policy.RealmStatus(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		realm.ApprovedAt = &t
	}
	if err := json.Unmarshal([]byte(recordTypes), &realm.AllowedRecordTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record types: %w", err)
	}
	if err := json.Unmarshal([]byte(operations), &realm.AllowedOperations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operations: %w", err)
	}
	return &realm, nil
}

func requireRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isConstraintViolation recognizes SQLite UNIQUE constraint errors.
// The extended code for UNIQUE is 2067; 19 is the base constraint code.
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
