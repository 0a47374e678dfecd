package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver verifies HS256 tokens locally and returns their subject.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTResolver creates a resolver for tokens signed with secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Resolve returns the sub claim of a valid, unexpired token.
func (j *JWTResolver) Resolve(_ context.Context, authToken string) (string, error) {
	if authToken == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := j.parser.ParseWithClaims(authToken, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
