package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/swahilipot/hubauth/account"
)

// Accounts is an in-memory account.Store.
type Accounts struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*account.Account
	byEmail map[string]int64
}

// NewAccounts returns an empty store.
func NewAccounts() *Accounts {
	return &Accounts{
		byID:    make(map[int64]*account.Account),
		byEmail: make(map[string]int64),
	}
}

var _ account.Store = (*Accounts)(nil)

func (s *Accounts) Create(_ context.Context, in account.NewAccount) (*account.Account, error) {
	email := account.NormalizeEmail(in.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, account.ErrDuplicateEmail
	}
	s.nextID++
	role := in.Role
	if role == "" {
		role = account.RoleUser
	}
	a := &account.Account{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: in.PasswordHash,
		FullName:     in.FullName,
		Department:   in.Department,
		Role:         role,
		CreatedAt:    in.CreatedAt,
		UpdatedAt:    in.CreatedAt,
	}
	s.byID[a.ID] = a
	s.byEmail[email] = a.ID

	out := *a
	return &out, nil
}

func (s *Accounts) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return nil, account.ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *Accounts) GetByID(_ context.Context, id int64) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (s *Accounts) RecordLoginFailure(_ context.Context, id int64, rule account.LockoutRule, now time.Time) (account.FailureState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return account.FailureState{}, account.ErrNotFound
	}
	state := account.NextFailureState(a.FailedLoginAttempts, a.LockedUntil, rule, now)
	a.FailedLoginAttempts = state.Attempts
	a.LockedUntil = state.LockedUntil
	a.UpdatedAt = now
	return state, nil
}

func (s *Accounts) ResetLoginFailures(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	if a.LockedUntil.After(now) {
		return account.ErrLocked
	}
	a.FailedLoginAttempts = 0
	a.LockedUntil = time.Time{}
	a.UpdatedAt = now
	return nil
}

func (s *Accounts) SetVerificationToken(_ context.Context, id int64, tokenHash string, expires, now time.Time) error {
	return s.mutate(id, now, func(a *account.Account) {
		a.VerificationTokenHash = tokenHash
		a.VerificationExpires = expires
	})
}

func (s *Accounts) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (*account.Account, error) {
	return s.consume(now, func(a *account.Account) bool {
		return a.VerificationTokenHash == tokenHash && a.VerificationExpires.After(now)
	}, func(a *account.Account) {
		a.EmailVerified = true
		a.VerificationTokenHash = ""
		a.VerificationExpires = time.Time{}
	})
}

func (s *Accounts) SetResetToken(_ context.Context, id int64, tokenHash string, expires, now time.Time) error {
	return s.mutate(id, now, func(a *account.Account) {
		a.ResetTokenHash = tokenHash
		a.ResetExpires = expires
	})
}

func (s *Accounts) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*account.Account, error) {
	return s.consume(now, func(a *account.Account) bool {
		return a.ResetTokenHash == tokenHash && a.ResetExpires.After(now)
	}, func(a *account.Account) {
		a.PasswordHash = passwordHash
		a.ResetTokenHash = ""
		a.ResetExpires = time.Time{}
		a.PasswordResetAt = now
		a.FailedLoginAttempts = 0
		a.LockedUntil = time.Time{}
	})
}

func (s *Accounts) UpdatePasswordHash(_ context.Context, id int64, passwordHash string, now time.Time) error {
	return s.mutate(id, now, func(a *account.Account) {
		a.PasswordHash = passwordHash
	})
}

func (s *Accounts) SetTOTPSecret(_ context.Context, id int64, secret string, now time.Time) error {
	return s.mutate(id, now, func(a *account.Account) {
		a.TOTPSecret = secret
		a.TOTPEnabled = false
	})
}

func (s *Accounts) EnableTOTP(_ context.Context, id int64, secret string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || secret == "" || a.TOTPSecret != secret {
		return account.ErrNotFound
	}
	a.TOTPEnabled = true
	a.UpdatedAt = now
	return nil
}

func (s *Accounts) DisableTOTP(_ context.Context, id int64, now time.Time) error {
	return s.mutate(id, now, func(a *account.Account) {
		a.TOTPSecret = ""
		a.TOTPEnabled = false
	})
}

func (s *Accounts) mutate(id int64, now time.Time, fn func(*account.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = now
	return nil
}

func (s *Accounts) consume(now time.Time, match func(*account.Account) bool, apply func(*account.Account)) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byID {
		if !match(a) {
			continue
		}
		apply(a)
		a.UpdatedAt = now
		out := *a
		return &out, nil
	}
	return nil, account.ErrNotFound
}
