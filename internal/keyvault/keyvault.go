// Package keyvault wraps and unwraps device secret keys under a single
// master key supplied at startup, so the segregated key store (spec §4.4)
// never holds key material in plaintext at rest. It follows the same
// derive-wrap-unwrap shape the teacher uses for client-side DEK wrapping,
// retargeted at the server's master key instead of a user password.
package keyvault

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/model"
)

func randRead(b []byte) (int, error) { return rand.Read(b) }

// KEKLen is the length of the derived key-encryption key.
const KEKLen = 32

const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// DeriveMasterKEK derives a 32-byte key-encryption key from the operator
// supplied master key material and a fixed-at-deploy salt, using Argon2id.
func DeriveMasterKEK(masterKey, salt []byte) []byte {
	return argon2.IDKey(masterKey, salt, argonTime, argonMemory, argonThreads, KEKLen)
}

// Vault wraps and unwraps per-device SecretKeys under one master KEK.
type Vault struct {
	kek []byte
}

// New constructs a Vault around an already-derived KEK.
func New(kek []byte) *Vault {
	return &Vault{kek: kek}
}

// perUIDKey derives an independent sub-key for a given UID via HKDF-SHA256,
// so a wrapped key cannot be replayed onto a different UID's row even if the
// ciphertext were copied across rows.
func (v *Vault) perUIDKey(uid model.UID) ([]byte, error) {
	r := hkdf.New(sha256.New, v.kek, nil, uid[:])
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := r.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Wrap seals a device's secret key for storage, with AAD binding the
// ciphertext to the owning UID.
func (v *Vault) Wrap(uid model.UID, key model.Key) ([]byte, error) {
	subKey, err := v.perUIDKey(uid)
	if err != nil {
		return nil, errs.NewCryptoError("wrap: derive subkey", err)
	}
	aead, err := chacha20poly1305.NewX(subKey)
	if err != nil {
		return nil, errs.NewCryptoError("wrap: aead init", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := randRead(nonce); err != nil {
		return nil, errs.NewCryptoError("wrap: nonce", err)
	}
	out := make([]byte, 0, len(nonce)+model.KeyLen+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, key[:], uid[:])...)
	return out, nil
}

// Unwrap recovers a device's secret key from its wrapped form.
func (v *Vault) Unwrap(uid model.UID, wrapped []byte) (model.Key, error) {
	var zero model.Key
	if len(wrapped) < chacha20poly1305.NonceSizeX {
		return zero, errs.NewCryptoError("unwrap", errors.New("wrapped key too short"))
	}
	subKey, err := v.perUIDKey(uid)
	if err != nil {
		return zero, errs.NewCryptoError("unwrap: derive subkey", err)
	}
	aead, err := chacha20poly1305.NewX(subKey)
	if err != nil {
		return zero, errs.NewCryptoError("unwrap: aead init", err)
	}
	nonce := wrapped[:chacha20poly1305.NonceSizeX]
	ct := wrapped[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ct, uid[:])
	if err != nil {
		return zero, errs.NewCryptoError("unwrap: open", err)
	}
	if len(plain) != model.KeyLen {
		return zero, errs.NewCryptoError("unwrap", errors.New("unexpected key length"))
	}
	var k model.Key
	copy(k[:], plain)
	return k, nil
}
