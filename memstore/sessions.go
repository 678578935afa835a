package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/swahilipot/hubauth/session"
)

// Sessions is an in-memory session.Store.
type Sessions struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*session.Session
	tokens map[string]int64
}

// NewSessions returns an empty store.
func NewSessions() *Sessions {
	return &Sessions{
		rows:   make(map[int64]*session.Session),
		tokens: make(map[string]int64),
	}
}

var _ session.Store = (*Sessions)(nil)

func (s *Sessions) Create(_ context.Context, in session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.tokens[in.TokenHash]; dup {
		return session.Session{}, errDuplicateToken
	}
	s.nextID++
	in.ID = s.nextID
	in.Revoked = false
	row := in
	s.rows[row.ID] = &row
	s.tokens[row.TokenHash] = row.ID
	return in, nil
}

func (s *Sessions) Get(_ context.Context, id int64) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (s *Sessions) GetByTokenHash(_ context.Context, tokenHash string, now time.Time) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokens[tokenHash]
	if !ok {
		return nil, session.ErrNotFound
	}
	row := s.rows[id]
	if !row.Active(now) {
		return nil, session.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (s *Sessions) ListActive(_ context.Context, accountID int64, now time.Time) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]session.Session, 0)
	for _, row := range s.rows {
		if row.AccountID == accountID && row.Active(now) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out, nil
}

func (s *Sessions) Revoke(_ context.Context, accountID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.AccountID != accountID || row.Revoked {
		return false, nil
	}
	row.Revoked = true
	return true, nil
}

func (s *Sessions) RevokeAll(_ context.Context, accountID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.rows {
		if row.AccountID == accountID && !row.Revoked {
			row.Revoked = true
			n++
		}
	}
	return n, nil
}

func (s *Sessions) Touch(_ context.Context, id int64, now, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.Revoked || !row.LastActive.Before(staleBefore) {
		return false, nil
	}
	row.LastActive = now
	return true, nil
}

func (s *Sessions) Purge(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.rows {
		if row.Revoked || row.ExpiresAt.Before(now) {
			delete(s.tokens, row.TokenHash)
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}
