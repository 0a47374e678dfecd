package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/replyreminder/replyreminder/internal/auth"
)

type memTokenCache struct {
	mu       sync.Mutex
	verified map[string]bool
}

func (c *memTokenCache) IsServiceTokenVerified(_ context.Context, h string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified[h]
}

func (c *memTokenCache) MarkServiceTokenVerified(_ context.Context, h string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verified == nil {
		c.verified = make(map[string]bool)
	}
	c.verified[h] = true
	return nil
}

func TestServiceAuth(t *testing.T) {
	const token = "rr_svc_correct"
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	tokenCache := &memTokenCache{}
	handler := ServiceAuth(ServiceAuthConfig{
		Logger:    discardLogger(),
		TokenHash: hash,
		Cache:     tokenCache,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"wrong token", "Bearer rr_svc_wrong", http.StatusUnauthorized},
		{"correct token", "Bearer " + token, http.StatusOK},
		{"correct token cached", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/reminders/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantStatus)
		}
	}

	if !tokenCache.IsServiceTokenVerified(context.Background(), verifiedTokenKey(hash, token)) {
		t.Error("expected verified token to be cached")
	}
}

func TestServiceAuth_RotatedHashIgnoresCachedToken(t *testing.T) {
	const oldToken, newToken = "rr_svc_old", "rr_svc_new"
	oldHash, err := auth.HashToken(oldToken)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}
	newHash, err := auth.HashToken(newToken)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	tokenCache := &memTokenCache{}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	call := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/reminders/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	before := ServiceAuth(ServiceAuthConfig{Logger: discardLogger(), TokenHash: oldHash, Cache: tokenCache})(ok)
	if code := call(before, oldToken); code != http.StatusOK {
		t.Fatalf("old token before rotation: status = %d, want 200", code)
	}

	after := ServiceAuth(ServiceAuthConfig{Logger: discardLogger(), TokenHash: newHash, Cache: tokenCache})(ok)
	if code := call(after, oldToken); code != http.StatusUnauthorized {
		t.Errorf("old token after rotation: status = %d, want 401", code)
	}
	if code := call(after, newToken); code != http.StatusOK {
		t.Errorf("new token after rotation: status = %d, want 200", code)
	}
}

func TestServiceAuth_DisabledWithoutHash(t *testing.T) {
	handler := ServiceAuth(ServiceAuthConfig{Logger: discardLogger()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/reminders/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
