package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	payloads := []string{"", "a", "hello world", `{"resourceId":42}`, "\x00\x01\x02"}
	secrets := []string{"s", "longer-secret-value", "另一个密钥"}

	for _, p := range payloads {
		for _, s := range secrets {
			sig := Sign([]byte(p), s)
			assert.True(t, Verify([]byte(p), sig, s), "payload %q secret %q", p, s)
		}
	}
}

func TestVerify_RejectsMutatedSignature(t *testing.T) {
	payload := []byte("payload under test")
	sig := Sign(payload, "secret")

	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(raw))
			copy(mutated, raw)
			mutated[i] ^= 1 << bit
			assert.False(t, Verify(payload, hex.EncodeToString(mutated), "secret"),
				"flipped bit %d of byte %d must not verify", bit, i)
		}
	}
}

func TestVerify_RejectsMutatedPayload(t *testing.T) {
	payload := []byte("payload under test")
	sig := Sign(payload, "secret")

	for i := range payload {
		mutated := make([]byte, len(payload))
		copy(mutated, payload)
		mutated[i] ^= 0x01
		assert.False(t, Verify(mutated, sig, "secret"))
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	payload := []byte("payload")
	sig := Sign(payload, "secret-a")
	assert.False(t, Verify(payload, sig, "secret-b"))
}

func TestVerify_MalformedSignature(t *testing.T) {
	payload := []byte("payload")

	assert.False(t, Verify(payload, "", "secret"), "empty signature")
	assert.False(t, Verify(payload, "zz", "secret"), "non-hex signature")
	assert.False(t, Verify(payload, "deadbeef", "secret"), "truncated signature")
	assert.False(t, Verify(payload, Sign(payload, "secret")+"00", "secret"), "overlong signature")
}
