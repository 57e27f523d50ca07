package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	box, err := NewBox("unit-test-master-key")
	require.NoError(t, err)

	for _, s := range []string{"", "a", "access-token-ABC123", "refresh/token+with=symbols", "日本語 secret"} {
		ct, err := box.Encrypt(s)
		require.NoError(t, err)
		if len(s) > 3 {
			assert.NotContains(t, ct, s, "ciphertext must not embed plaintext")
		}

		got, err := box.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestSameKeyAcrossRestarts(t *testing.T) {
	box1, err := NewBox("stable-key")
	require.NoError(t, err)
	box2, err := NewBox("stable-key")
	require.NoError(t, err)

	ct, err := box1.Encrypt("survives restart")
	require.NoError(t, err)
	got, err := box2.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "survives restart", got)
}

func TestTamperDetection(t *testing.T) {
	box, err := NewBox("unit-test-master-key")
	require.NoError(t, err)

	ct, err := box.Encrypt("tamper me")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(ct)
	require.NoError(t, err)
	for i := range raw {
		flipped := make([]byte, len(raw))
		copy(flipped, raw)
		flipped[i] ^= 0x01
		_, err := box.Decrypt(base64.RawURLEncoding.EncodeToString(flipped))
		assert.ErrorIs(t, err, ErrDecrypt, "byte %d", i)
	}
}

func TestMalformedBlobs(t *testing.T) {
	box, err := NewBox("unit-test-master-key")
	require.NoError(t, err)

	for _, blob := range []string{"", "not-base64!!", "AAAA", "v0:plaintext-leak"} {
		_, err := box.Decrypt(blob)
		assert.ErrorIs(t, err, ErrDecrypt, "blob %q", blob)
	}
}

func TestWrongKeyFails(t *testing.T) {
	a, err := NewBox("key-a")
	require.NoError(t, err)
	b, err := NewBox("key-b")
	require.NoError(t, err)

	ct, err := a.Encrypt("secret")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestInsecureBox(t *testing.T) {
	box := NewInsecureBox()
	assert.True(t, box.Insecure())

	ct, err := box.Encrypt("dev-token")
	require.NoError(t, err)
	assert.Equal(t, "v0:dev-token", ct, "plaintext blobs are explicitly marked")

	got, err := box.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "dev-token", got)

	// A keyed blob is opaque to the insecure box.
	keyed, err := func() (string, error) {
		kb, err := NewBox("k")
		if err != nil {
			return "", err
		}
		return kb.Encrypt("x")
	}()
	require.NoError(t, err)
	_, err = box.Decrypt(keyed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNoKeyRefused(t *testing.T) {
	_, err := NewBox("")
	assert.ErrorIs(t, err, ErrNoKey)
}
