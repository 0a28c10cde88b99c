package credpool

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher, err := NewSecretCipher("correct horse battery staple")
	require.NoError(t, err)

	secrets := []string{
		"sessionid=abc123; csrftoken=xyz",
		"",
		"unicode ünïcödé 🔑",
	}
	for _, secret := range secrets {
		encrypted, err := cipher.Encrypt(secret)
		require.NoError(t, err)
		assert.NotEqual(t, secret, encrypted)

		decrypted, err := cipher.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, secret, decrypted)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	cipher, err := NewSecretCipher("passphrase")
	require.NoError(t, err)

	a, err := cipher.Encrypt("same secret")
	require.NoError(t, err)
	b, err := cipher.Encrypt("same secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "salt and nonce must differ per encryption")
}

func TestDecryptWrongPassphrase(t *testing.T) {
	cipher, err := NewSecretCipher("right")
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	wrong, err := NewSecretCipher("wrong")
	require.NoError(t, err)
	_, err = wrong.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	cipher, err := NewSecretCipher("passphrase")
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = cipher.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestDecryptMalformedInput(t *testing.T) {
	cipher, err := NewSecretCipher("passphrase")
	require.NoError(t, err)

	cases := []string{
		"not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		"",
	}
	for _, in := range cases {
		_, err := cipher.Decrypt(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNewSecretCipherEmptyPassphrase(t *testing.T) {
	_, err := NewSecretCipher("")
	assert.Error(t, err)
}
