package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/hastexo/webhook-receiver/core"
)

// Digest computes the base64-encoded HMAC-SHA256 of body keyed by secret.
// The input must be the exact raw bytes as received from the vendor.
func Digest(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// HMACValid reports whether signature matches the digest of body under
// secret, using a constant-time comparison.
func HMACValid(secret string, body []byte, signature string) bool {
	expected := hmac.New(sha256.New, []byte(secret))
	_, _ = expected.Write(body)
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, expected.Sum(nil)) == 1
}

// ErrHeaderMissing marks a request that never carried the header a
// verifier needed; ErrVerificationFailed marks a header that was present
// but did not check out. Handlers answer 400 for the former and 403 for
// the latter.
var (
	ErrHeaderMissing      = errors.New("webhooks: required header is missing")
	ErrVerificationFailed = errors.New("webhooks: verification failed")
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HeaderHMACVerifier checks a base64 HMAC-SHA256 signature carried in a
// request header against the raw request body.
type HeaderHMACVerifier struct {
	Header string
	Secret string
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(HeaderValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("%w: %s", ErrHeaderMissing, strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("%w: signature secret is not configured", ErrVerificationFailed)
	}
	if !HMACValid(secret, req.Body, header) {
		return fmt.Errorf("%w: signature mismatch", ErrVerificationFailed)
	}
	return nil
}

// HeaderSourceVerifier checks the vendor's shop/source identifier header
// against the configured expected value.
type HeaderSourceVerifier struct {
	Header string
	Source string
}

func (v HeaderSourceVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	actual := strings.TrimSpace(HeaderValue(req.Headers, v.Header))
	if actual == "" {
		return fmt.Errorf("%w: %s", ErrHeaderMissing, strings.TrimSpace(v.Header))
	}
	expected := strings.TrimSpace(v.Source)
	if expected == "" {
		return fmt.Errorf("%w: expected source is not configured", ErrVerificationFailed)
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("%w: unknown source %q", ErrVerificationFailed, actual)
	}
	return nil
}

// HeaderValue looks up one header by name, case-insensitively, returning
// the trimmed value or empty when absent.
func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
