package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// DefaultTokenBytes is 256 bits of entropy, double the recommended
// floor for single-use secrets.
const DefaultTokenBytes = 32

// TokenPair couples a raw secret with the hash that goes to storage.
// Only the hash is ever persisted.
type TokenPair struct {
	Value string // value sent to the user
	Hash  string // value in storage
}

// GenerateToken returns a URL-safe random string of the given byte
// length read from crypto/rand.
func GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}

	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateTokenPair returns a fresh random token together with its
// storage hash.
func GenerateTokenPair() (*TokenPair, error) {
	value, err := GenerateToken(DefaultTokenBytes)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Value: value,
		Hash:  HashToken(value),
	}, nil
}

// VerifyToken reports whether a raw token matches a stored hash.
func VerifyToken(value, storedHash string) (bool, error) {
	if value == "" || storedHash == "" {
		return false, errors.New("token and hash cannot be empty")
	}

	valueHash := HashToken(value)

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(valueHash), []byte(storedHash)) == 1, nil
}

// HashToken is the at-rest form of a token value.
func HashToken(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:])
}
