package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements are idempotent and applied in order inside one transaction.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
        id            BIGSERIAL PRIMARY KEY,
        phone         VARCHAR(15) NOT NULL UNIQUE,
        name          VARCHAR(255) NOT NULL DEFAULT 'Anonymous',
        password_hash BYTEA NOT NULL,
        pin_hash      BYTEA,
        is_active     BOOLEAN NOT NULL DEFAULT TRUE,
        is_staff      BOOLEAN NOT NULL DEFAULT FALSE,
        is_superuser  BOOLEAN NOT NULL DEFAULT FALSE,
        token_version INTEGER NOT NULL DEFAULT 0,
        last_login    TIMESTAMPTZ,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS wallets (
        id         BIGSERIAL PRIMARY KEY,
        user_id    BIGINT NOT NULL UNIQUE REFERENCES accounts (id) ON DELETE CASCADE,
        balance    NUMERIC(14, 2) NOT NULL DEFAULT 0,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS accounts_created_at_idx ON accounts (created_at)`,
}

// Apply creates the accounts and wallets schema.
func Apply(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
