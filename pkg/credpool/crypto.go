package credpool

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"mediagrab/pkg/logger"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100000

	keyringService = "mediagrab"
	keyringUser    = "credential-passphrase"
	passphraseEnv  = "MEDIAGRAB_PASSPHRASE"
)

// SecretCipher encrypts credential secrets at rest with AES-GCM under a
// pbkdf2-derived key. Each ciphertext carries its own salt and nonce.
type SecretCipher struct {
	passphrase []byte
}

// NewSecretCipher creates a cipher from a passphrase.
func NewSecretCipher(passphrase string) (*SecretCipher, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	return &SecretCipher{passphrase: []byte(passphrase)}, nil
}

// Encrypt seals a plaintext secret; output is base64(salt || nonce || ct).
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *SecretCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret: %w", err)
	}
	if len(raw) < saltSize {
		return "", errors.New("ciphertext too short")
	}

	salt, rest := raw[:saltSize], raw[saltSize:]
	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}
	if len(rest) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plain), nil
}

func (c *SecretCipher) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// LoadPassphrase resolves the master passphrase: environment first, then
// the system keyring, generating and storing a fresh one on first run.
func LoadPassphrase(log logger.Logger) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	if pass, err := keyring.Get(keyringService, keyringUser); err == nil && pass != "" {
		return pass, nil
	}

	pass, err := generatePassphrase()
	if err != nil {
		return "", err
	}
	if err := keyring.Set(keyringService, keyringUser, pass); err != nil {
		// Headless hosts often have no keyring; the generated passphrase
		// still works for this process but secrets will not survive a
		// restart unless MEDIAGRAB_PASSPHRASE is set.
		log.WithError(err).Warn("keyring unavailable, using ephemeral passphrase")
	}
	return pass, nil
}

func generatePassphrase() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
