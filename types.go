package hubauth

import (
	"context"
	"time"

	"github.com/swahilipot/hubauth/account"
)

// User is the public view of an account. It never carries hashes, secrets
// or lockout counters.
type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	Department       string    `json:"department"`
	Role             string    `json:"role"`
	EmailVerified    bool      `json:"emailVerified"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

func userView(a *account.Account) User {
	return User{
		ID:               a.ID,
		Email:            a.Email,
		FullName:         a.FullName,
		Department:       a.Department,
		Role:             string(a.Role),
		EmailVerified:    a.EmailVerified,
		TwoFactorEnabled: a.TOTPState() == account.TOTPEnabled,
		CreatedAt:        a.CreatedAt,
	}
}

// SignupInput is the registration form.
type SignupInput struct {
	Email      string
	Password   string
	FullName   string
	Department string
}

// TokenPair is the result of a completed login. SessionToken and SessionID
// are set only when a session was recorded.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        int64
	SessionToken     string
}

type SignupResult struct {
	User   User
	Tokens TokenPair
}

// LoginResult is either a completed login (Tokens set) or a second-factor
// challenge (Require2FA, TempToken and UserID set).
type LoginResult struct {
	User       User
	Tokens     TokenPair
	Require2FA bool
	TempToken  string
	UserID     int64
}

// RefreshResult carries the new access token. Refresh tokens are not
// rotated.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TOTPSetup is returned once by SetupTOTP. QRCode is a PNG data URL.
type TOTPSetup struct {
	Secret     string
	OTPAuthURL string
	QRCode     string
}

// TOTPVerifyInput identifies the account by TempToken, UserID or both. A
// TempToken takes precedence; when both are given they must agree.
type TOTPVerifyInput struct {
	Code      string
	UserID    int64
	TempToken string
}

// AuthResult is the identity carried by a validated access token.
type AuthResult struct {
	AccountID int64
	Email     string
	Role      string
	SessionID int64
	ExpiresAt time.Time
}

// Notifier delivers account emails. Implementations are expected to queue
// and return quickly; the engine only logs returned errors.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
}

type nopNotifier struct{}

func (nopNotifier) SendVerification(context.Context, string, string, string) error  { return nil }
func (nopNotifier) SendPasswordReset(context.Context, string, string, string) error { return nil }
func (nopNotifier) SendPasswordChanged(context.Context, string, string) error       { return nil }
