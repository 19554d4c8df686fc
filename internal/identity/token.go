package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	SetupTokenPrefix = "li_"
	SetupTokenBytes  = 32
)

// GenerateSetupToken returns a new single-use account setup token and its hash.
// Only the hash is persisted; the raw token travels in the magic link.
func GenerateSetupToken() (token string, hash []byte, err error) {
	randomBytes := make([]byte, SetupTokenBytes)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = SetupTokenPrefix + encoded
	hash = HashSetupToken(token)

	return token, hash, nil
}

func HashSetupToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func ValidateSetupTokenFormat(token string) bool {
	if len(token) < len(SetupTokenPrefix) {
		return false
	}

	if token[:len(SetupTokenPrefix)] != SetupTokenPrefix {
		return false
	}

	encoded := token[len(SetupTokenPrefix):]
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	return len(decoded) == SetupTokenBytes
}
