package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Token format: rr_svc_{secret}
// Example: rr_svc_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefix    = "rr_svc_"
	TokenSecretLen = 64 // hex encoded 32 bytes
)

var tokenFormatRegex = regexp.MustCompile(`^rr_svc_[a-f0-9]{64}$`)

// GeneratedToken is a newly minted service token.
type GeneratedToken struct {
	ID        string // ULID, for logs and rotation bookkeeping
	Plaintext string // give to the dispatcher as SERVICE_TOKEN
	Hash      string // give to the API as SERVICE_TOKEN_HASH
}

// GenerateServiceToken creates a random service token and its Argon2id hash.
func GenerateServiceToken() (*GeneratedToken, error) {
	secret := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := TokenPrefix + hex.EncodeToString(secret)

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{
		ID:        strings.ToLower(ulid.Make().String()),
		Plaintext: plaintext,
		Hash:      hash,
	}, nil
}

// ValidateTokenFormat checks if token looks like a generated service token.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}
