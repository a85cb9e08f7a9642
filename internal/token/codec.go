package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Lifetime is the fixed validity window of every minted claim. There is no
// revocation list; compromise response is rotating the signing secret,
// which invalidates all outstanding tokens at once.
const Lifetime = 30 * 24 * time.Hour

// Claim is the authenticated fact a token asserts: the subject may access
// one specific resource until the expiry instant. Claims are never mutated
// after minting.
type Claim struct {
	ResourceID int64  `json:"resourceId"`
	Subject    string `json:"subject"`
	IssuedAt   int64  `json:"issuedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// NewClaim builds a claim for subject on resourceID, valid for Lifetime
// from now. The subject is lower-cased so equality checks are stable.
func NewClaim(resourceID int64, subject string, now time.Time) Claim {
	issued := now.Unix()
	return Claim{
		ResourceID: resourceID,
		Subject:    strings.ToLower(subject),
		IssuedAt:   issued,
		ExpiresAt:  issued + int64(Lifetime/time.Second),
	}
}

// Mint serializes and signs a claim: base64(claim-json) "." hex-hmac.
func Mint(c Claim, secret string) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	return encoded + "." + Sign([]byte(encoded), secret), nil
}

// Parse validates a token and recovers its claim. The second return is
// false for any defect: missing separator, bad signature, undecodable or
// malformed claim, or an expired validity window. Callers must treat a
// failed parse exactly like an absent token.
func Parse(tok, secret string, now time.Time) (Claim, bool) {
	encoded, sig, found := strings.Cut(tok, ".")
	if !found {
		return Claim{}, false
	}
	if !Verify([]byte(encoded), sig, secret) {
		return Claim{}, false
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Claim{}, false
	}

	var c Claim
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claim{}, false
	}
	if c.ResourceID < 1 || c.Subject == "" {
		return Claim{}, false
	}
	if now.Unix() >= c.ExpiresAt {
		return Claim{}, false
	}
	return c, true
}
