package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// Kind is the purpose of a signed token, carried in the typ claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindTemp    Kind = "2fa"
)

var (
	// ErrInvalid covers malformed tokens, bad signatures, wrong kind and any
	// claim failure other than expiry.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired is returned only for well-formed, correctly signed tokens
	// whose exp has passed.
	ErrExpired = errors.New("token expired")
)

// Config configures signing keys and lifetimes. For HS256, PrivateKey is the
// shared secret and RefreshKey, when set, signs refresh tokens separately.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	RefreshKey    []byte
	KeyID         string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	TempTTL    time.Duration

	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// Now overrides time.Now for issuance and validation.
	Now func() time.Time
}

// Manager issues and verifies signed tokens of every Kind.
type Manager struct {
	config Config
}

// Claims is the payload shared by all kinds. Email and Role are set on
// access and refresh tokens only; SID binds a token to a session when
// session tracking is on.
type Claims struct {
	UID   int64  `json:"uid"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	SID   int64  `json:"sid,omitempty"`
	Type  Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Subject identifies who a token is issued for.
type Subject struct {
	AccountID int64
	Email     string
	Role      string
	SessionID int64
}

// NewManager validates cfg. HS256 requires a secret of at least 32 bytes;
// Ed25519 requires a public key and, for issuance, a private key.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.TempTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must be >= access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 secret must be at least 32 bytes")
		}
		if len(cfg.RefreshKey) > 0 && len(cfg.RefreshKey) < 32 {
			return nil, errors.New("hs256 refresh secret must be at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
		if len(cfg.RefreshKey) > 0 {
			return nil, errors.New("refresh key is only supported with hs256")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// TTL returns the configured lifetime for kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	switch kind {
	case KindRefresh:
		return m.config.RefreshTTL
	case KindTemp:
		return m.config.TempTTL
	default:
		return m.config.AccessTTL
	}
}

// Issue signs a token of kind for sub and returns it with its expiry.
func (m *Manager) Issue(kind Kind, sub Subject) (string, time.Time, error) {
	if sub.AccountID <= 0 {
		return "", time.Time{}, errors.New("subject account id is required")
	}

	now := m.config.Now()
	expires := now.Add(m.TTL(kind))

	claims := Claims{
		UID:  sub.AccountID,
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.AccountID, 10),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
		},
	}
	if kind != KindTemp {
		claims.Email = sub.Email
		claims.Role = sub.Role
		claims.SID = sub.SessionID
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	key, err := m.signKey(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies a token of the given kind. It returns ErrExpired only after
// the signature has been verified; every other failure is ErrInvalid.
func (m *Manager) Parse(kind Kind, tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if m.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey(kind)
	})
	if err != nil {
		// Expiry is reported only for a correctly signed token of the
		// requested kind; anything else is invalid.
		if errors.Is(err, jwt.ErrTokenExpired) && token != nil {
			if claims, ok := token.Claims.(*Claims); ok && claims.Type == kind && claims.UID > 0 {
				return nil, ErrExpired
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: unexpected token kind %q", ErrInvalid, claims.Type)
	}
	if claims.UID <= 0 {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalid)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}

	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey(kind Kind) (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.hmacKey(kind), nil
	}
	if len(m.config.PrivateKey) == 0 {
		return nil, errors.New("ed25519 private key not configured")
	}
	return parseEdPrivateKey(m.config.PrivateKey)
}

func (m *Manager) verifyKey(kind Kind) (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.hmacKey(kind), nil
	}
	return parseEdPublicKey(m.config.PublicKey)
}

func (m *Manager) hmacKey(kind Kind) []byte {
	if kind == KindRefresh && len(m.config.RefreshKey) > 0 {
		return m.config.RefreshKey
	}
	return m.config.PrivateKey
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
