package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	DefaultTokenLength = 32 // 256 bits
)

var ErrEmptyToken = errors.New("token and hash cannot be empty")

// TokenPair holds a session token and the digest kept in storage.
type TokenPair struct {
	Token string // value returned to client
	Hash  string // value in storage
}

// GenerateSessionToken returns a random URL-safe token of byteLength random
// bytes together with its SHA-256 digest. A non-positive byteLength selects
// DefaultTokenLength.
func GenerateSessionToken(byteLength int) (*TokenPair, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenLength
	}

	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}

	token := base64.RawURLEncoding.EncodeToString(raw)
	return &TokenPair{
		Token: token,
		Hash:  HashToken(token),
	}, nil
}

// VerifyToken reports whether token hashes to storedHash.
func VerifyToken(token, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, ErrEmptyToken
	}

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1, nil
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
