package session

import "time"

// Session is one device login. TokenHash is the digest of the opaque token
// handed to the client.
type Session struct {
	ID         int64
	AccountID  int64
	TokenHash  string
	DeviceInfo string
	IPAddress  string
	CreatedAt  time.Time
	LastActive time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.Revoked && s.ExpiresAt.After(now)
}

// Device describes the client a session is created for.
type Device struct {
	UserAgent string
	IP        string
}
