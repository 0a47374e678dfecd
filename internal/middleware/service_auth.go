package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/replyreminder/replyreminder/internal/auth"
)

// TokenCache remembers recently verified service tokens by quick hash.
type TokenCache interface {
	IsServiceTokenVerified(ctx context.Context, tokenHash string) bool
	MarkServiceTokenVerified(ctx context.Context, tokenHash string) error
}

// ServiceAuthConfig holds configuration for the service token middleware.
type ServiceAuthConfig struct {
	Logger *slog.Logger
	// TokenHash is the Argon2id PHC hash of the accepted token.
	// Empty disables the check.
	TokenHash string
	// Cache is optional.
	Cache TokenCache
}

// ServiceAuth guards the dispatcher-facing endpoints with a static bearer token.
func ServiceAuth(cfg ServiceAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.TokenHash == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				cfg.Logger.Warn("service authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			cacheKey := verifiedTokenKey(cfg.TokenHash, token)
			if cfg.Cache != nil && cfg.Cache.IsServiceTokenVerified(r.Context(), cacheKey) {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := auth.VerifyToken(token, cfg.TokenHash)
			if err != nil {
				cfg.Logger.Error("service token hash is invalid",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !ok {
				cfg.Logger.Warn("service authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if cfg.Cache != nil {
				_ = cfg.Cache.MarkServiceTokenVerified(r.Context(), cacheKey)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifiedTokenKey binds a cached verification to the hash it was checked
// against, so rotating the configured hash invalidates earlier entries.
func verifiedTokenKey(tokenHash, token string) string {
	return auth.QuickHash(auth.QuickHash(tokenHash) + ":" + token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
