package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveSecured(cfg SecurityConfig) *httptest.ResponseRecorder {
	h := Security(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "replyreminder")
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reminder", nil))
	return rec
}

func TestSecurity_APIHeaders(t *testing.T) {
	rec := serveSecured(DefaultSecurityConfig())

	want := map[string]string{
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "same-origin",
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":                "no-store",
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestSecurity_HSTSFollowsEnvironment(t *testing.T) {
	if got := serveSecured(SecurityConfig{}).Header().Get("Strict-Transport-Security"); got != hstsValue {
		t.Errorf("production HSTS = %q, want %q", got, hstsValue)
	}
	if got := serveSecured(SecurityConfig{IsDevelopment: true}).Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("development HSTS = %q, want empty", got)
	}
}

func TestSecurity_HandlerMayOverride(t *testing.T) {
	rec := serveSecured(SecurityConfig{})
	if got := rec.Header().Get("Server"); got != "replyreminder" {
		t.Errorf("Server = %q, handler value should win", got)
	}
}

func TestMaxBodySize_DeclaredLengthRejected(t *testing.T) {
	called := false
	h := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/reminder", strings.NewReader(`{"text":"well over sixteen bytes"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler ran for an oversized body")
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Body.String(); got != `{"success":false,"msg":"request body too large"}` {
		t.Errorf("body = %s", got)
	}
}

func TestMaxBodySize_StreamedBodyCapped(t *testing.T) {
	var readErr error
	h := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/reminder", strings.NewReader(`{"text":"well over sixteen bytes"}`))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Fatalf("read error = %v, want *http.MaxBytesError", readErr)
	}
	if maxErr.Limit != 16 {
		t.Errorf("limit = %d, want 16", maxErr.Limit)
	}
}

func TestMaxBodySize_SmallBodyPasses(t *testing.T) {
	var got string
	h := MaxBodySize(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/reminder", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || got != `{"text":"hi"}` {
		t.Errorf("status = %d body = %q", rec.Code, got)
	}
}
