package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
)

// SignaturePrefix is the algorithm tag GitHub puts in front of the hex digest
// in the X-Hub-Signature-256 header.
const SignaturePrefix = "sha256="

const redacted = "[REDACTED]"

// Verify reports whether signature is the HMAC-SHA256 of body keyed by secret,
// in the "sha256=<hex>" form GitHub sends.
//
// The full expected header value is compared with crypto/subtle; malformed
// input is just a mismatch. An empty secret or signature never verifies.
func Verify(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}

	expected := Sign(secret, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign computes the X-Hub-Signature-256 header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verifier holds the shared webhook secret. The secret is copied on
// construction and never leaves the type; formatting a Verifier prints
// a placeholder.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: append([]byte(nil), secret...)}
}

// Verify checks signature against body using the held secret.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if v == nil {
		return false
	}
	return Verify(v.secret, body, signature)
}

func (v *Verifier) String() string { return redacted }

func (v *Verifier) GoString() string { return redacted }

// LogValue keeps the secret out of slog output.
func (v *Verifier) LogValue() slog.Value { return slog.StringValue(redacted) }
