package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Refresh token format: art_{prefix}_{secret}
// Example: art_7a9x3k01_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	RefreshPrefixLen = 8  // hex encoded 4 bytes
	RefreshSecretLen = 64 // hex encoded 32 bytes
)

var (
	// ErrInvalidRefreshFormat indicates the refresh token format is invalid.
	ErrInvalidRefreshFormat = errors.New("invalid refresh token format")
	refreshFormatRegex      = regexp.MustCompile(`^art_([a-f0-9]{8})_([a-f0-9]{64})$`)
)

// GeneratedRefreshToken contains the parts of a newly generated refresh token.
type GeneratedRefreshToken struct {
	Plaintext string // Full token (returned to the client once)
	Hash      string // SHA-256 hex for storage
	Prefix    string // lookup prefix
}

// GenerateRefreshToken creates a new opaque refresh token.
// The secret carries 256 bits of entropy so a fast hash is sufficient.
func GenerateRefreshToken() (*GeneratedRefreshToken, error) {
	prefixBytes := make([]byte, RefreshPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	prefix := hex.EncodeToString(prefixBytes)

	secretBytes := make([]byte, RefreshSecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	plaintext := fmt.Sprintf("art_%s_%s", prefix, secret)

	return &GeneratedRefreshToken{
		Plaintext: plaintext,
		Hash:      HashRefreshToken(plaintext),
		Prefix:    prefix,
	}, nil
}

// ParseRefreshToken validates the format and returns the lookup prefix.
func ParseRefreshToken(token string) (string, error) {
	matches := refreshFormatRegex.FindStringSubmatch(token)
	if matches == nil {
		return "", ErrInvalidRefreshFormat
	}
	return matches[1], nil
}

// HashRefreshToken returns the storage hash of a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
