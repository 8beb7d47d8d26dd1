package verify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"amount":100}}`)
	validSignature := Sign(secret, body)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   error
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: validSignature,
			secret:    secret,
		},
		{
			name:      "valid signature with sha256 prefix",
			body:      body,
			signature: "sha256=" + validSignature,
			secret:    secret,
		},
		{
			name:      "modified body",
			body:      []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"amount":101}}`),
			signature: validSignature,
			secret:    secret,
			wantErr:   ErrSignatureMismatch,
		},
		{
			name:      "wrong secret",
			body:      body,
			signature: validSignature,
			secret:    "other-secret",
			wantErr:   ErrSignatureMismatch,
		},
		{
			name:      "flipped signature character",
			body:      body,
			signature: flipHexDigit(validSignature),
			secret:    secret,
			wantErr:   ErrSignatureMismatch,
		},
		{
			name:      "non-hex signature",
			body:      body,
			signature: "sha256=not-hex-at-all",
			secret:    secret,
			wantErr:   ErrSignatureMismatch,
		},
		{
			name:      "missing signature",
			body:      body,
			signature: "",
			secret:    secret,
			wantErr:   ErrMissingSignature,
		},
		{
			name:      "missing secret",
			body:      body,
			signature: validSignature,
			secret:    "",
			wantErr:   ErrMissingSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.body, tt.signature, tt.secret, "", 5*time.Minute)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyTimestampWindow(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"id":"evt_2"}`)
	signature := Sign(secret, body)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tolerance := 5 * time.Minute

	tests := []struct {
		name      string
		timestamp string
		wantErr   error
	}{
		{
			name:      "just inside window",
			timestamp: now.Add(-tolerance + time.Second).Format(time.RFC3339),
		},
		{
			name:      "just outside window",
			timestamp: now.Add(-tolerance - time.Second).Format(time.RFC3339),
			wantErr:   ErrStaleTimestamp,
		},
		{
			name:      "future timestamp outside window",
			timestamp: now.Add(tolerance + time.Second).Format(time.RFC3339),
			wantErr:   ErrStaleTimestamp,
		},
		{
			name:      "malformed timestamp",
			timestamp: "yesterday-ish",
			wantErr:   ErrBadTimestamp,
		},
		{
			name:      "no timestamp skips the check",
			timestamp: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyAt(now, body, signature, secret, tt.timestamp, tolerance)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// flipHexDigit changes the first hex character so the digest still decodes
// but no longer matches.
func flipHexDigit(sig string) string {
	b := []byte(sig)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
