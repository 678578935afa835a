package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Sizes, in random bytes, of the opaque tokens minted by hubauth. Encoded
// tokens are hex and therefore twice as long.
const (
	OpaqueTokenBytes  = 32
	SessionTokenBytes = 48
	CSRFTokenBytes    = 32
)

var errInvalidTokenSize = errors.New("invalid token size")

// NewOpaqueToken returns size random bytes hex-encoded.
func NewOpaqueToken(size int) (string, error) {
	if size < 16 {
		return "", errInvalidTokenSize
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// HashToken returns the hex SHA-256 digest stored in place of an opaque token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsHexToken reports whether value is a hex encoding of exactly size bytes.
func IsHexToken(value string, size int) bool {
	if len(value) != size*2 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
