// Package token implements the signed session token: an HMAC-SHA256 signer
// and a codec that binds a claim (subject, resource, validity window) into a
// compact cookie-safe string.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 digest of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether hexSig is the valid signature for payload.
// The digest comparison is constant time so response timing never reveals
// which byte of a forged signature diverged. Malformed hex and length
// mismatches return false without error; length is not a secret.
func Verify(payload []byte, hexSig string, secret string) bool {
	given, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	if len(given) != len(expected) {
		return false
	}
	return hmac.Equal(given, expected)
}
