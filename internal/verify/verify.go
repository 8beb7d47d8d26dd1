// Package verify authenticates inbound webhook deliveries: an HMAC-SHA256
// signature over the exact raw body bytes, plus an optional timestamp
// tolerance check against replayed requests.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingSecret     = errors.New("no webhook secret configured")
	ErrMissingSignature  = errors.New("signature header missing")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrStaleTimestamp    = errors.New("timestamp outside tolerance window")
	ErrBadTimestamp      = errors.New("malformed timestamp header")
)

// Sign computes the hex HMAC-SHA256 digest of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the HMAC of the raw, unparsed body. The
// caller must pass the exact bytes received on the wire; hashing a
// re-serialized payload will not match. An optional "sha256=" prefix on the
// signature is accepted. When timestamp is non-empty it must be RFC 3339
// and within tolerance of the current time.
//
// Verify has no side effects and must run before the payload is trusted.
func Verify(body []byte, signature, secret, timestamp string, tolerance time.Duration) error {
	return verifyAt(time.Now().UTC(), body, signature, secret, timestamp, tolerance)
}

func verifyAt(now time.Time, body []byte, signature, secret, timestamp string, tolerance time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if signature == "" {
		return ErrMissingSignature
	}

	if timestamp != "" {
		ts, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrBadTimestamp, timestamp)
		}
		if d := now.Sub(ts); d > tolerance || d < -tolerance {
			return ErrStaleTimestamp
		}
	}

	supplied, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(supplied, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}
