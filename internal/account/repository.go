package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, acc Account) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
	FindByPhone(ctx context.Context, phone string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, acc Account) (Account, error)
	Delete(ctx context.Context, id int64) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, phone, name, password_hash, pin_hash, is_active, is_staff, is_superuser,
        token_version, last_login, created_at, updated_at`

// Create inserts a new account and returns it with its assigned identifier.
func (r *PostgresRepository) Create(ctx context.Context, acc Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts
        (phone, name, password_hash, pin_hash, is_active, is_staff, is_superuser, token_version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
        RETURNING `+selectColumns,
		acc.Phone, acc.Name, acc.PasswordHash, acc.PINHash, acc.IsActive, acc.IsStaff, acc.IsSuperuser,
		acc.TokenVersion, time.Now().UTC())
	created, err := scanAccount(row)
	if err != nil {
		return Account{}, translate(err)
	}
	return created, nil
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		return Account{}, translate(err)
	}
	return acc, nil
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE phone = $1`, phone)
	acc, err := scanAccount(row)
	if err != nil {
		return Account{}, translate(err)
	}
	return acc, nil
}

// List returns every account ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// Update overwrites the mutable columns of an account.
func (r *PostgresRepository) Update(ctx context.Context, acc Account) (Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET
        phone = $2, name = $3, password_hash = $4, pin_hash = $5, is_active = $6, is_staff = $7,
        is_superuser = $8, token_version = $9, last_login = $10, updated_at = $11
        WHERE id = $1
        RETURNING `+selectColumns,
		acc.ID, acc.Phone, acc.Name, acc.PasswordHash, acc.PINHash, acc.IsActive, acc.IsStaff,
		acc.IsSuperuser, acc.TokenVersion, acc.LastLogin, time.Now().UTC())
	updated, err := scanAccount(row)
	if err != nil {
		return Account{}, translate(err)
	}
	return updated, nil
}

// Delete removes an account; wallets cascade through the foreign key.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc       Account
		lastLogin *time.Time
	)
	if err := row.Scan(&acc.ID, &acc.Phone, &acc.Name, &acc.PasswordHash, &acc.PINHash, &acc.IsActive,
		&acc.IsStaff, &acc.IsSuperuser, &acc.TokenVersion, &lastLogin, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, err
	}
	if lastLogin != nil {
		t := lastLogin.UTC()
		acc.LastLogin = &t
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrPhoneTaken
	}
	return err
}
