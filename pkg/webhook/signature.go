package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC of a POST delivery
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

// verifySignature checks header ("sha256=<hex>") against the HMAC-SHA256 of
// body keyed with secret
func verifySignature(body []byte, header, secret string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	expected := computeSignature(body, secret)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(header)), []byte(expected)) == 1
}

// computeSignature returns the header value for body
func computeSignature(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}
