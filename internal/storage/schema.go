package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// realms table: domain-scoped grants, one row per unit of admin
		// approval. Revocation is a status change; rows are never deleted
		// while audit history must be retained.
		`CREATE TABLE IF NOT EXISTS realms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL,
			domain TEXT NOT NULL,
			realm_type TEXT NOT NULL,
			allowed_record_types TEXT NOT NULL,
			allowed_operations TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			approved_at TIMESTAMP,
			UNIQUE(account_id, domain, realm_type)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_realms_account ON realms(account_id)`,

		// tokens table: bearer credentials scoped to one realm. The raw
		// secret is never stored; token_prefix narrows lookups and
		// token_hash carries the one-way hash. NULL scoping columns mean
		// "inherit the realm's list".
		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			realm_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			token_prefix TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			allowed_record_types TEXT,
			allowed_operations TEXT,
			allowed_ip_ranges TEXT,
			expires_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			revoked_at TIMESTAMP,
			last_used_at TIMESTAMP,
			use_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (realm_id) REFERENCES realms(id)
		)`,

		// Name uniqueness only among live tokens. A rotated token's
		// replacement reuses the name while the revoked row stays behind
		// for auditing.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tokens_realm_name
			ON tokens(realm_id, name) WHERE revoked_at IS NULL`,

		// Index on token_prefix so request-time lookup hits at most a
		// handful of candidate rows before the expensive verify step.
		`CREATE INDEX IF NOT EXISTS idx_tokens_prefix ON tokens(token_prefix)`,

		`CREATE INDEX IF NOT EXISTS idx_tokens_realm ON tokens(realm_id)`,

		// accounts table: account alias registry for the bearer format.
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			alias TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_accounts_alias ON accounts(alias)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}
