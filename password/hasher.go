package password

import (
	"errors"
	"strings"
)

var (
	ErrEmptyPassword   = errors.New("password is empty")
	ErrPasswordTooLong = errors.New("password is too long")
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Hasher hashes and verifies passwords. Verify returns (false, nil) for a
// well-formed hash that does not match.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Multi hashes with Primary and verifies any hash format it recognizes, so a
// deployment can move between bcrypt and argon2id without invalidating
// stored credentials.
type Multi struct {
	Primary Hasher
	Bcrypt  *Bcrypt
	Argon2  *Argon2
}

func (m *Multi) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	h, err := m.pick(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade is true when the hash uses a non-primary algorithm or weaker
// costs than the primary.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := m.pick(encodedHash)
	if err != nil {
		return false, err
	}
	if h != m.Primary {
		return true, nil
	}
	return h.NeedsUpgrade(encodedHash)
}

func (m *Multi) pick(encodedHash string) (Hasher, error) {
	switch {
	case isBcryptHash(encodedHash) && m.Bcrypt != nil:
		return m.Bcrypt, nil
	case strings.HasPrefix(encodedHash, argon2Prefix) && m.Argon2 != nil:
		return m.Argon2, nil
	default:
		return nil, ErrUnsupportedHash
	}
}

func isBcryptHash(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
