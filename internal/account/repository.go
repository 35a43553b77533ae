package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureauth/secureauth/internal/apperr"
)

const uniqueViolation = "23505"

// Repository persists accounts keyed by account number.
type Repository interface {
	Find(ctx context.Context, accountNumber string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, account Account) error
	// RecordAttempt runs attempt against the locked account and stores the
	// resulting counter transition. Concurrent attempts on one account are
	// serialized, so attempt always sees the counters left by the previous one.
	RecordAttempt(ctx context.Context, accountNumber string, at time.Time, attempt AttemptFunc) (Account, error)
	// Update loads the account, applies fn and stores the result in one transaction.
	Update(ctx context.Context, accountNumber string, fn func(*Account) error) (Account, error)
	Delete(ctx context.Context, accountNumber string) error
	Ping(ctx context.Context) error
}

// AttemptFunc decides whether a login attempt succeeded. It runs while the
// account is locked. A non-nil error aborts the attempt and leaves the
// counters untouched.
type AttemptFunc func(a Account) (success bool, err error)

// Outcome returns an AttemptFunc with a fixed result.
func Outcome(success bool) AttemptFunc {
	return func(Account) (bool, error) { return success, nil }
}

func recordWith(attempt AttemptFunc, at time.Time) func(*Account) error {
	return func(a *Account) error {
		success, err := attempt(*a)
		if err != nil {
			return err
		}
		applyAttempt(a, success, at)
		return nil
	}
}

// applyAttempt is the counter transition shared by every Repository implementation.
func applyAttempt(a *Account, success bool, at time.Time) {
	at = at.UTC()
	if success {
		a.LoginAttempts = 0
		a.LastFailedAttempt = nil
		a.LastLogin = &at
		return
	}
	a.LoginAttempts++
	a.LastFailedAttempt = &at
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `account_number, password_hash, first_name, last_name, age, gender,
        phone_number, address, bank_account_type, date_of_account_opening, branch_code,
        login_attempts, last_failed_attempt, last_login, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.AccountNumber, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Age, &a.Gender,
		&a.PhoneNumber, &a.Address, &a.BankAccountType, &a.DateOfAccountOpening, &a.BranchCode,
		&a.LoginAttempts, &a.LastFailedAttempt, &a.LastLogin, &a.CreatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

// Find fetches an account by number.
func (r *PostgresRepository) Find(ctx context.Context, accountNumber string) (Account, error) {
	const op = "account.Find"
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE account_number = $1`, accountNumber)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, notFound(op, accountNumber)
		}
		return Account{}, apperr.Storage(op, err)
	}
	return a, nil
}

// List returns every account ordered by account number.
func (r *PostgresRepository) List(ctx context.Context) ([]Account, error) {
	const op = "account.List"
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY account_number`)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return out, nil
}

// Create inserts a new account. An existing row with the same number is left untouched.
func (r *PostgresRepository) Create(ctx context.Context, a Account) error {
	const op = "account.Create"
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (account_number, password_hash, first_name, last_name, age, gender,
        phone_number, address, bank_account_type, date_of_account_opening, branch_code,
        login_attempts, last_failed_attempt, last_login, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, NULL, NULL, $12)`,
		a.AccountNumber, a.PasswordHash, a.FirstName, a.LastName, a.Age, a.Gender,
		a.PhoneNumber, a.Address, a.BankAccountType, a.DateOfAccountOpening, a.BranchCode,
		a.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return duplicate(op)
		}
		return apperr.Storage(op, err)
	}
	return nil
}

// RecordAttempt holds the row lock across attempt and the counter write.
func (r *PostgresRepository) RecordAttempt(ctx context.Context, accountNumber string, at time.Time, attempt AttemptFunc) (Account, error) {
	return r.Update(ctx, accountNumber, recordWith(attempt, at))
}

// Update runs fn against the locked row and writes every column back.
func (r *PostgresRepository) Update(ctx context.Context, accountNumber string, fn func(*Account) error) (Account, error) {
	const op = "account.Update"

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, apperr.Storage(op, err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE account_number = $1 FOR UPDATE`, accountNumber)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, notFound(op, accountNumber)
		}
		return Account{}, apperr.Storage(op, err)
	}

	if err := fn(&a); err != nil {
		return Account{}, err
	}
	// The primary key is immutable whatever fn did.
	a.AccountNumber = accountNumber

	_, err = tx.Exec(ctx, `UPDATE accounts SET password_hash = $2, first_name = $3, last_name = $4, age = $5,
        gender = $6, phone_number = $7, address = $8, bank_account_type = $9, date_of_account_opening = $10,
        branch_code = $11, login_attempts = $12, last_failed_attempt = $13, last_login = $14
        WHERE account_number = $1`,
		a.AccountNumber, a.PasswordHash, a.FirstName, a.LastName, a.Age,
		a.Gender, a.PhoneNumber, a.Address, a.BankAccountType, a.DateOfAccountOpening,
		a.BranchCode, a.LoginAttempts, a.LastFailedAttempt, a.LastLogin)
	if err != nil {
		return Account{}, apperr.Storage(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, apperr.Storage(op, err)
	}
	return a, nil
}

// Delete removes an account.
func (r *PostgresRepository) Delete(ctx context.Context, accountNumber string) error {
	const op = "account.Delete"
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE account_number = $1`, accountNumber)
	if err != nil {
		return apperr.Storage(op, err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound(op, accountNumber)
	}
	return nil
}

// Ping checks storage connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return apperr.Storage("account.Ping", err)
	}
	return nil
}

func notFound(op, accountNumber string) error {
	return apperr.New(op, apperr.ErrNotFound, fmt.Sprintf("Customer with account number %s not found", accountNumber))
}

func duplicate(op string) error {
	return apperr.New(op, apperr.ErrDuplicateAccount, "User with this account number already exists")
}
