package messenger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

var (
	// ErrMissingSignature is returned when the header is absent or malformed.
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign returns the header value the platform sends for body: "sha256=<hex>".
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the app secret and raw body.
func VerifySignature(appSecret, header string, body []byte) error {
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrMissingSignature
	}

	expected := Sign(appSecret, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(header))) {
		return ErrInvalidSignature
	}
	return nil
}
