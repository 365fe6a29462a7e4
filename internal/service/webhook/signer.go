package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the body signature on every signed delivery.
const SignatureHeader = "X-Webhook-Signature"

// Sign computes the signature header value for a request body:
// "sha256=" followed by the hex HMAC-SHA256 of the exact bytes placed on the
// wire, keyed by the site's webhook secret. Customers recompute this over
// the received body to verify authenticity.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether header is a valid signature for body under
// secret. Comparison is constant-time.
func VerifySignature(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
