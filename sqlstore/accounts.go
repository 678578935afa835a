package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swahilipot/hubauth/account"
)

const accountColumns = `id, email, password_hash, full_name, department, role,
	email_verified, totp_secret, totp_enabled, failed_login_attempts, locked_until,
	verification_token_hash, verification_expires, reset_token_hash, reset_expires,
	password_reset_at, created_at, updated_at`

// AccountStore is the SQL account.Store.
type AccountStore struct {
	db      DBTX
	dialect Dialect
}

func NewAccountStore(db DBTX, dialect Dialect) *AccountStore {
	return &AccountStore{db: db, dialect: dialect}
}

var _ account.Store = (*AccountStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		a                     account.Account
		role                  string
		verifyHash, resetHash sql.NullString
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Department, &role,
		&a.EmailVerified, &a.TOTPSecret, &a.TOTPEnabled, &a.FailedLoginAttempts, timeDest{&a.LockedUntil},
		&verifyHash, timeDest{&a.VerificationExpires}, &resetHash, timeDest{&a.ResetExpires},
		timeDest{&a.PasswordResetAt}, timeDest{&a.CreatedAt}, timeDest{&a.UpdatedAt})
	if err != nil {
		return nil, err
	}
	a.Role = account.Role(role)
	a.VerificationTokenHash = verifyHash.String
	a.ResetTokenHash = resetHash.String
	return &a, nil
}

func (s *AccountStore) queryAccount(ctx context.Context, query string, args ...any) (*account.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (s *AccountStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *AccountStore) Create(ctx context.Context, in account.NewAccount) (*account.Account, error) {
	role := in.Role
	if role == "" {
		role = account.RoleUser
	}
	created := in.CreatedAt.UTC()

	query := `INSERT INTO accounts (email, password_hash, full_name, department, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + accountColumns

	a, err := scanAccount(s.db.QueryRowContext(ctx, s.dialect.rebind(query),
		account.NormalizeEmail(in.Email), in.PasswordHash, in.FullName, in.Department, string(role), created, created))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, account.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, account.NormalizeEmail(email))
}

func (s *AccountStore) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// recordFailureQuery applies account.NextFailureState in one statement. SET
// expressions see the pre-update row on both backends.
const recordFailureQuery = `UPDATE accounts SET
		failed_login_attempts = CASE
			WHEN locked_until IS NOT NULL AND locked_until <= ? THEN 1
			ELSE failed_login_attempts + 1
		END,
		locked_until = CASE
			WHEN (CASE
				WHEN locked_until IS NOT NULL AND locked_until <= ? THEN 1
				ELSE failed_login_attempts + 1
			END) >= ? THEN ?
			WHEN locked_until IS NOT NULL AND locked_until <= ? THEN NULL
			ELSE locked_until
		END,
		updated_at = ?
	WHERE id = ?
	RETURNING failed_login_attempts, locked_until`

func (s *AccountStore) RecordLoginFailure(ctx context.Context, id int64, rule account.LockoutRule, now time.Time) (account.FailureState, error) {
	now = now.UTC()
	lockUntil := now.Add(rule.Duration)

	var state account.FailureState
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(recordFailureQuery),
		now, now, rule.Threshold, lockUntil, now, now, id,
	).Scan(&state.Attempts, timeDest{&state.LockedUntil})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.FailureState{}, account.ErrNotFound
		}
		return account.FailureState{}, fmt.Errorf("db error: %w", err)
	}
	return state, nil
}

func (s *AccountStore) ResetLoginFailures(ctx context.Context, id int64, now time.Time) error {
	now = now.UTC()
	err := s.exec(ctx, `UPDATE accounts SET failed_login_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)`,
		now, id, now)
	if !errors.Is(err, account.ErrNotFound) {
		return err
	}

	var one int
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT 1 FROM accounts WHERE id = ?`), id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return account.ErrNotFound
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	}
	return account.ErrLocked
}

func (s *AccountStore) SetVerificationToken(ctx context.Context, id int64, tokenHash string, expires, now time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET verification_token_hash = ?, verification_expires = ?, updated_at = ? WHERE id = ?`,
		nullString(tokenHash), nullTime(expires), now.UTC(), id)
}

func (s *AccountStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*account.Account, error) {
	now = now.UTC()
	return s.queryAccount(ctx, `UPDATE accounts SET
			email_verified = TRUE,
			verification_token_hash = NULL,
			verification_expires = NULL,
			updated_at = ?
		WHERE verification_token_hash = ? AND verification_expires > ?
		RETURNING `+accountColumns,
		now, tokenHash, now)
}

func (s *AccountStore) SetResetToken(ctx context.Context, id int64, tokenHash string, expires, now time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET reset_token_hash = ?, reset_expires = ?, updated_at = ? WHERE id = ?`,
		nullString(tokenHash), nullTime(expires), now.UTC(), id)
}

func (s *AccountStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*account.Account, error) {
	now = now.UTC()
	return s.queryAccount(ctx, `UPDATE accounts SET
			password_hash = ?,
			reset_token_hash = NULL,
			reset_expires = NULL,
			password_reset_at = ?,
			failed_login_attempts = 0,
			locked_until = NULL,
			updated_at = ?
		WHERE reset_token_hash = ? AND reset_expires > ?
		RETURNING `+accountColumns,
		passwordHash, now, now, tokenHash, now)
}

func (s *AccountStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string, now time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now.UTC(), id)
}

func (s *AccountStore) SetTOTPSecret(ctx context.Context, id int64, secret string, now time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET totp_secret = ?, totp_enabled = FALSE, updated_at = ? WHERE id = ?`,
		secret, now.UTC(), id)
}

func (s *AccountStore) EnableTOTP(ctx context.Context, id int64, secret string, now time.Time) error {
	if secret == "" {
		return account.ErrNotFound
	}
	return s.exec(ctx, `UPDATE accounts SET totp_enabled = TRUE, updated_at = ? WHERE id = ? AND totp_secret = ?`,
		now.UTC(), id, secret)
}

func (s *AccountStore) DisableTOTP(ctx context.Context, id int64, now time.Time) error {
	return s.exec(ctx, `UPDATE accounts SET totp_secret = '', totp_enabled = FALSE, updated_at = ? WHERE id = ?`,
		now.UTC(), id)
}
