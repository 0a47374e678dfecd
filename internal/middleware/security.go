package middleware

import (
	"net/http"
)

// SecurityConfig controls the response hardening applied by the router.
type SecurityConfig struct {
	// IsDevelopment skips HSTS so plain-HTTP local runs keep working.
	IsDevelopment bool
	// MaxRequestBodySize caps request bodies in bytes. Zero leaves them unbounded.
	MaxRequestBodySize int64
}

// DefaultSecurityConfig is the production profile with a 1 MiB body cap.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{MaxRequestBodySize: 1 << 20}
}

const hstsValue = "max-age=31536000; includeSubDomains; preload"

// apiHeaders are sent on every response. The API only ever serves JSON, so
// nothing here needs to vary per route.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Cache-Control", "no-store"},
}

// Security stamps apiHeaders onto the response before the handler runs.
// Handlers may still override any of them.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects requests whose declared length exceeds maxBytes and
// bounds the remaining ones with http.MaxBytesReader. Handlers see a
// *http.MaxBytesError when a streamed body runs past the limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
