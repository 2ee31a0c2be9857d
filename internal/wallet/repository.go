package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Repository persists wallets.
type Repository interface {
	Create(ctx context.Context, w Wallet) (Wallet, error)
	Get(ctx context.Context, id int64) (Wallet, error)
	GetByUser(ctx context.Context, userID int64) (Wallet, error)
	List(ctx context.Context) ([]Wallet, error)
	Update(ctx context.Context, w Wallet) (Wallet, error)
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID int64) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, user_id, balance::text, updated_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) (Wallet, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO wallets (user_id, balance, updated_at)
        VALUES ($1, $2::numeric, $3)
        RETURNING `+walletColumns, w.UserID, w.Balance.String(), time.Now().UTC())
	created, err := scanWallet(row)
	if err != nil {
		return Wallet{}, translate(err)
	}
	return created, nil
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Wallet, error) {
	w, err := scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return Wallet{}, translate(err)
	}
	return w, nil
}

// GetByUser fetches the wallet owned by userID.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID int64) (Wallet, error) {
	w, err := scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return Wallet{}, translate(err)
	}
	return w, nil
}

// List returns all wallets ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Update stores a new balance.
func (r *PostgresRepository) Update(ctx context.Context, w Wallet) (Wallet, error) {
	row := r.db.QueryRow(ctx, `UPDATE wallets SET balance = $2::numeric, updated_at = $3
        WHERE id = $1
        RETURNING `+walletColumns, w.ID, w.Balance.String(), time.Now().UTC())
	updated, err := scanWallet(row)
	if err != nil {
		return Wallet{}, translate(err)
	}
	return updated, nil
}

// Delete removes a wallet.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes the wallet owned by userID, if any.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wallets WHERE user_id = $1`, userID)
	return err
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w       Wallet
		balance string
	)
	if err := row.Scan(&w.ID, &w.UserID, &balance, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	w.Balance = amount
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrWalletExists
		case foreignKeyViolation:
			return ErrUnknownUser
		}
	}
	return err
}
