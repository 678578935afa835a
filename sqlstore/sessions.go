package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swahilipot/hubauth/session"
)

const sessionColumns = `id, account_id, token_hash, device_info, ip_address, created_at, last_active, expires_at, revoked`

// SessionStore is the SQL session.Store.
type SessionStore struct {
	db      DBTX
	dialect Dialect
}

func NewSessionStore(db DBTX, dialect Dialect) *SessionStore {
	return &SessionStore{db: db, dialect: dialect}
}

var _ session.Store = (*SessionStore)(nil)

func scanSession(row rowScanner) (session.Session, error) {
	var s session.Session
	err := row.Scan(&s.ID, &s.AccountID, &s.TokenHash, &s.DeviceInfo, &s.IPAddress,
		timeDest{&s.CreatedAt}, timeDest{&s.LastActive}, timeDest{&s.ExpiresAt}, &s.Revoked)
	if err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (s *SessionStore) Create(ctx context.Context, in session.Session) (session.Session, error) {
	query := `INSERT INTO sessions (account_id, token_hash, device_info, ip_address, created_at, last_active, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE)
		RETURNING ` + sessionColumns

	out, err := scanSession(s.db.QueryRowContext(ctx, s.dialect.rebind(query),
		in.AccountID, in.TokenHash, in.DeviceInfo, in.IPAddress,
		in.CreatedAt.UTC(), in.LastActive.UTC(), in.ExpiresAt.UTC()))
	if err != nil {
		return session.Session{}, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *SessionStore) querySession(ctx context.Context, query string, args ...any) (*session.Session, error) {
	out, err := scanSession(s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (s *SessionStore) Get(ctx context.Context, id int64) (*session.Session, error) {
	return s.querySession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
}

func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*session.Session, error) {
	return s.querySession(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE token_hash = ? AND revoked = FALSE AND expires_at > ?`, tokenHash, now.UTC())
}

func (s *SessionStore) ListActive(ctx context.Context, accountID int64, now time.Time) ([]session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE account_id = ? AND revoked = FALSE AND expires_at > ?
		ORDER BY last_active DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), accountID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]session.Session, 0)
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *SessionStore) affected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *SessionStore) Revoke(ctx context.Context, accountID, id int64) (bool, error) {
	n, err := s.affected(ctx, `UPDATE sessions SET revoked = TRUE WHERE id = ? AND account_id = ? AND revoked = FALSE`, id, accountID)
	return n > 0, err
}

func (s *SessionStore) RevokeAll(ctx context.Context, accountID int64) (int64, error) {
	return s.affected(ctx, `UPDATE sessions SET revoked = TRUE WHERE account_id = ? AND revoked = FALSE`, accountID)
}

func (s *SessionStore) Touch(ctx context.Context, id int64, now, staleBefore time.Time) (bool, error) {
	n, err := s.affected(ctx, `UPDATE sessions SET last_active = ? WHERE id = ? AND revoked = FALSE AND last_active < ?`,
		now.UTC(), id, staleBefore.UTC())
	return n > 0, err
}

func (s *SessionStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	return s.affected(ctx, `DELETE FROM sessions WHERE revoked = TRUE OR expires_at < ?`, now.UTC())
}
