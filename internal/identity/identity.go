// Package identity resolves a user's auth token to their global user id (gsid).
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/replyreminder/replyreminder/internal/auth"
)

// ErrInvalidToken is returned when the provider rejects the auth token.
var ErrInvalidToken = errors.New("invalid auth token")

// Resolver maps an auth token to the gsid it was issued for.
type Resolver interface {
	Resolve(ctx context.Context, authToken string) (string, error)
}

// GraphResolver asks the identity provider's Graph API who owns the token.
type GraphResolver struct {
	baseURL string
	http    *http.Client
}

// NewGraphResolver creates a resolver calling {baseURL}/me?fields=id.
func NewGraphResolver(baseURL string, httpClient *http.Client) *GraphResolver {
	return &GraphResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Resolve returns the provider's id for the token owner.
func (g *GraphResolver) Resolve(ctx context.Context, authToken string) (string, error) {
	if authToken == "" {
		return "", ErrInvalidToken
	}

	q := url.Values{}
	q.Set("fields", "id")
	q.Set("access_token", authToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build identity request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		// The URL carries the token; report only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", ErrInvalidToken
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("identity lookup: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode identity response: %w", err)
	}

	// Providers return the id as a string or a bare number.
	id := strings.Trim(string(body.ID), `"`)
	if id == "" || id == "null" {
		return "", ErrInvalidToken
	}
	return id, nil
}

// IdentityCache stores token-hash to gsid mappings.
type IdentityCache interface {
	GetIdentity(ctx context.Context, tokenHash string) (string, bool)
	SetIdentity(ctx context.Context, tokenHash, gsid string) error
}

// CachedResolver memoizes successful resolutions. Failures are not cached.
type CachedResolver struct {
	next   Resolver
	cache  IdentityCache
	logger *slog.Logger
}

// NewCachedResolver wraps next with cache.
func NewCachedResolver(next Resolver, cache IdentityCache, logger *slog.Logger) *CachedResolver {
	return &CachedResolver{
		next:   next,
		cache:  cache,
		logger: logger.With("component", "identity"),
	}
}

// Resolve consults the cache before the wrapped resolver.
func (c *CachedResolver) Resolve(ctx context.Context, authToken string) (string, error) {
	key := auth.QuickHash(authToken)
	if gsid, ok := c.cache.GetIdentity(ctx, key); ok {
		return gsid, nil
	}

	gsid, err := c.next.Resolve(ctx, authToken)
	if err != nil {
		return "", err
	}

	if err := c.cache.SetIdentity(ctx, key, gsid); err != nil {
		c.logger.Warn("failed to cache identity", slog.String("error", err.Error()))
	}
	return gsid, nil
}

// Config selects and assembles the resolver used by the API.
type Config struct {
	// JWTSecret switches to local HS256 verification when set.
	JWTSecret  string
	GraphURL   string
	HTTPClient *http.Client
	Cache      IdentityCache
	Logger     *slog.Logger
}

// New returns a JWTResolver when a secret is configured and a cached
// GraphResolver otherwise. JWT results are never cached because each token
// carries its own expiry, which a fixed cache TTL would outlive.
func New(cfg Config) Resolver {
	if cfg.JWTSecret != "" {
		cfg.Logger.Info("identity tokens verified as JWT")
		return NewJWTResolver(cfg.JWTSecret)
	}
	graph := NewGraphResolver(cfg.GraphURL, cfg.HTTPClient)
	if cfg.Cache == nil {
		return graph
	}
	return NewCachedResolver(graph, cfg.Cache, cfg.Logger)
}
