package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
)

var errUndecryptable = errors.New("failed to decrypt message payload")

// Encryptor seals message bodies at rest with AES-256-GCM. Bodies written
// under an older fernet key can still be read when that key is listed in
// legacyKeys.
type Encryptor struct {
	aead       cipher.AEAD
	fernetKeys []*fernet.Key
}

// NewEncryptor derives the AES key from an arbitrary-length secret with SHA-256.
func NewEncryptor(key []byte, legacyKeys []string) (*Encryptor, error) {
	if len(key) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	var keys []*fernet.Key
	for _, raw := range append([]string{string(key)}, legacyKeys...) {
		if fk, err := fernet.DecodeKey(strings.TrimSpace(raw)); err == nil {
			keys = append(keys, fk)
		}
	}
	return &Encryptor{aead: aead, fernetKeys: keys}, nil
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	if raw, err := base64.StdEncoding.DecodeString(enc); err == nil && len(raw) >= e.aead.NonceSize() {
		n := e.aead.NonceSize()
		if plain, err := e.aead.Open(nil, raw[:n], raw[n:], nil); err == nil {
			return string(plain), nil
		}
	}
	if len(e.fernetKeys) > 0 {
		// zero TTL: no expiry
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0, e.fernetKeys); plain != nil {
			return string(plain), nil
		}
	}
	return "", errUndecryptable
}

// DecryptOrRaw returns the plaintext, or enc itself when it was never
// encrypted (rows written before encryption was enabled).
func (e *Encryptor) DecryptOrRaw(enc string) string {
	if enc == "" {
		return enc
	}
	if plain, err := e.Decrypt(enc); err == nil {
		return plain
	}
	return enc
}
