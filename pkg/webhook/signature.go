package webhook

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // GitHub's legacy X-Hub-Signature header is HMAC-SHA1
	"encoding/hex"
)

// SignatureHeader carries the HMAC-SHA1 signature of the request body.
const SignatureHeader = "X-Hub-Signature"

const signaturePrefix = "sha1="

// Sign returns the X-Hub-Signature value GitHub would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates a GitHub webhook signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	// Secret is required for security - no bypass allowed
	if secret == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(secret, body)))
}
