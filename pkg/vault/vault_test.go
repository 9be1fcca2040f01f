package vault_test

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campaigner/pkg/vault"
)

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	v, err := vault.New(hex.EncodeToString(key))
	require.NoError(t, err)
	return v
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()
		_, err := vault.New("")
		require.ErrorIs(t, err, vault.ErrMissingKey)
	})

	t.Run("whitespace key", func(t *testing.T) {
		t.Parallel()
		_, err := vault.New("   ")
		require.ErrorIs(t, err, vault.ErrMissingKey)
	})

	t.Run("hex key", func(t *testing.T) {
		t.Parallel()
		_, err := vault.New(strings.Repeat("ab", 32))
		require.NoError(t, err)
	})

	t.Run("base64 key", func(t *testing.T) {
		t.Parallel()
		key := base64.StdEncoding.EncodeToString(make([]byte, 32))
		_, err := vault.New(key)
		require.NoError(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Parallel()
		key := base64.StdEncoding.EncodeToString(make([]byte, 16))
		_, err := vault.New(key)
		require.ErrorIs(t, err, vault.ErrInvalidKey)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := vault.New("not a key at all!!!")
		require.ErrorIs(t, err, vault.ErrInvalidKey)
	})
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	v := newTestVault(t)

	for _, plaintext := range []string{
		"",
		"refresh-token-1//abc",
		"unicode: ñé 漢字",
		strings.Repeat("x", 4096),
	} {
		payload, err := v.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := v.Decrypt(payload)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_FreshNonce(t *testing.T) {
	t.Parallel()

	v := newTestVault(t)

	a, err := v.Encrypt("secret")
	require.NoError(t, err)
	b, err := v.Encrypt("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_EmptyPayload(t *testing.T) {
	t.Parallel()

	v := newTestVault(t)

	got, err := v.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecrypt_CorruptPayload(t *testing.T) {
	t.Parallel()

	v := newTestVault(t)

	payload, err := v.Encrypt("secret")
	require.NoError(t, err)

	t.Run("missing components", func(t *testing.T) {
		t.Parallel()
		_, err := v.Decrypt("deadbeef:cafe")
		require.ErrorIs(t, err, vault.ErrCorruptPayload)
	})

	t.Run("non-hex component", func(t *testing.T) {
		t.Parallel()
		_, err := v.Decrypt("zz:zz:zz")
		require.ErrorIs(t, err, vault.ErrCorruptPayload)
	})

	t.Run("flipped ciphertext bit", func(t *testing.T) {
		t.Parallel()

		parts := strings.Split(payload, ":")
		require.Len(t, parts, 3)

		ciphertext, err := hex.DecodeString(parts[2])
		require.NoError(t, err)
		ciphertext[0] ^= 0x01
		tampered := parts[0] + ":" + parts[1] + ":" + hex.EncodeToString(ciphertext)

		_, err = v.Decrypt(tampered)
		require.ErrorIs(t, err, vault.ErrCorruptPayload)
	})

	t.Run("flipped tag bit", func(t *testing.T) {
		t.Parallel()

		parts := strings.Split(payload, ":")
		tag, err := hex.DecodeString(parts[1])
		require.NoError(t, err)
		tag[0] ^= 0x01
		tampered := parts[0] + ":" + hex.EncodeToString(tag) + ":" + parts[2]

		_, err = v.Decrypt(tampered)
		require.ErrorIs(t, err, vault.ErrCorruptPayload)
	})
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	payload, err := newTestVault(t).Encrypt("secret")
	require.NoError(t, err)

	_, err = newTestVault(t).Decrypt(payload)
	require.ErrorIs(t, err, vault.ErrCorruptPayload)
}
