package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Account maps an account name to the opaque alias embedded in bearer
// tokens. The alias is random so tokens never reveal account names.
type Account struct {
	ID        int64
	Name      string
	Alias     string
	CreatedAt time.Time
}

// CreateAccount registers a new account with its alias.
// Returns ErrDuplicate if the name or alias is already taken.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, name, alias string) (*Account, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, alias) VALUES (?, ?)`, name, alias)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}
	return &Account{ID: id, Name: name, Alias: alias}, nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id int64) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, alias, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Alias, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// GetAccountByName retrieves an account by its unique name.
func (s *SQLiteStorage) GetAccountByName(ctx context.Context, name string) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, alias, created_at FROM accounts WHERE name = ?`, name).
		Scan(&a.ID, &a.Name, &a.Alias, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}
